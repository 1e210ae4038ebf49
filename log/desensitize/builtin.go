package desensitize

const Mask = "******"

var (
	// BearerRule Authorization: Bearer eyJ... -> Bearer ******
	BearerRule = MustNewPatternRule("bearer", `(?i)(bearer\s+)[A-Za-z0-9\-_.~+/]+=*`, "${1}"+Mask)

	// AccessTokenRule {"access_token":"..."}
	AccessTokenRule = MustNewFieldRule("access_token", "access_token", Mask)

	TokenRule = MustNewFieldRule("token", "token", Mask)

	PasswordRule = MustNewFieldRule("password", "password", Mask)

	// FormPasswordRule 表单编码的登录请求 username=..&password=..
	FormPasswordRule = MustNewPatternRule("form_password", `(password=)[^&\s"]*`, "${1}"+Mask)

	SecretRule = MustNewFieldRule("secret", "secret", Mask)
)

// BuiltinRules 返回会话凭据相关的全部内置规则
func BuiltinRules() []Rule {
	return []Rule{
		BearerRule,
		AccessTokenRule,
		TokenRule,
		PasswordRule,
		FormPasswordRule,
		SecretRule,
	}
}
