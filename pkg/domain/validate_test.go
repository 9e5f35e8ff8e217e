package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrgName(t *testing.T) {
	assert.NoError(t, CheckOrgName("ACME"))
	assert.Error(t, CheckOrgName(""))
	assert.Error(t, CheckOrgName("   "))
	assert.Error(t, CheckOrgName(strings.Repeat("x", MaxNameLength+1)))
}

func TestCheckEmail(t *testing.T) {
	assert.NoError(t, CheckEmail("ada@example.com"))
	assert.Error(t, CheckEmail(""))
	assert.Error(t, CheckEmail("not-an-email"))
	assert.Error(t, CheckEmail("missing@tld@double.com"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
	// Idempotent.
	assert.Equal(t, "ada@example.com", NormalizeEmail(NormalizeEmail("Ada@Example.com")))
}

func TestCheckDomainName(t *testing.T) {
	assert.NoError(t, CheckDomainName("example.com"))
	assert.NoError(t, CheckDomainName("sub.example.co.uk"))
	assert.Error(t, CheckDomainName(""))
	assert.Error(t, CheckDomainName("nodots"))
	assert.Error(t, CheckDomainName("-leading.example.com"))
	assert.Error(t, CheckDomainName("UPPER.example.com"), "validation expects normalized input")
}

func TestNormalizeDomainName(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomainName("  Example.COM "))
}

func TestCheckRoleKey(t *testing.T) {
	assert.NoError(t, CheckRoleKey("ADMIN"))
	assert.NoError(t, CheckRoleKey("PROJECT_OWNER_2"))
	assert.Error(t, CheckRoleKey(""))
	assert.Error(t, CheckRoleKey("admin"))
	assert.Error(t, CheckRoleKey("2ADMIN"))
	assert.Error(t, CheckRoleKey("WITH SPACE"))
}

func TestCheckURL(t *testing.T) {
	assert.NoError(t, CheckURL("https://example.com/callback"))
	assert.NoError(t, CheckURL("http://localhost:8080/cb"))
	assert.Error(t, CheckURL(""))
	assert.Error(t, CheckURL("://missing-scheme"))
}

func TestCheckLanguage(t *testing.T) {
	assert.NoError(t, CheckLanguage(""))
	assert.NoError(t, CheckLanguage("de-CH"))
	assert.NoError(t, CheckLanguage("en"))
	assert.Error(t, CheckLanguage("not a tag"))
}

func TestCheckHexColor(t *testing.T) {
	assert.NoError(t, CheckHexColor(""))
	assert.NoError(t, CheckHexColor("#fff"))
	assert.NoError(t, CheckHexColor("#5469D4"))
	assert.Error(t, CheckHexColor("5469D4"))
	assert.Error(t, CheckHexColor("#12345"))
}

func TestIsOTPCode(t *testing.T) {
	assert.True(t, IsOTPCode("123456"))
	assert.False(t, IsOTPCode("12345"))
	assert.False(t, IsOTPCode("12345a"))
}

func TestIsVerificationToken(t *testing.T) {
	assert.True(t, IsVerificationToken("abcDEF0123456789"))
	assert.False(t, IsVerificationToken("short"))
	assert.False(t, IsVerificationToken("with space in it but long enough"))
}
