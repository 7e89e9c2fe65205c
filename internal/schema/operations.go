package schema

import "github.com/ppiankov/admingate/internal/model"

// Patterns for constrained string fields. Compiled into each operation's
// schema with full-match anchoring.
const (
	planPattern = `free|basic|pro|enterprise`
	ipv4Pattern = `((25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])`
	// Full form, or one "::" compression at the start, end, or middle.
	// Bare "::" and colon runs with no hex groups do not match.
	ipv6Pattern = `([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}` +
		`|([0-9a-fA-F]{1,4}:){1,7}:` +
		`|:(:[0-9a-fA-F]{1,4}){1,7}` +
		`|([0-9a-fA-F]{1,4}:){1,6}(:[0-9a-fA-F]{1,4}){1,6}`
)

func i64(v int64) *int64 { return &v }

// tokenField is the shape of the in-body idToken. It is declared here so
// a body carrying it is not rejected as an unknown field; the gateway
// drops it from the validated payload after validation, before dispatch.
func tokenField(required bool) Field {
	return Field{Type: TypeString, Required: required, MinLen: 1, MaxLen: 4096}
}

// Operations declares the payload shape of every privileged operation.
// Bounds are inclusive; anything not declared here is rejected.
func Operations() []Operation {
	return []Operation{
		{
			Name: string(model.OpVerifyAdmin),
			Fields: map[string]Field{
				"idToken": tokenField(true),
			},
		},
		{
			Name: string(model.OpListUsers),
			Fields: map[string]Field{
				"idToken": tokenField(false),
			},
		},
		{
			Name: string(model.OpBanUser),
			Fields: map[string]Field{
				"idToken":  tokenField(false),
				"userId":   {Type: TypeString, Required: true, MinLen: 10, MaxLen: 100},
				"reason":   {Type: TypeString, Required: true, MinLen: 5, MaxLen: 500},
				"duration": {Type: TypeInteger, Required: true, Min: i64(1), Max: i64(36500)},
			},
		},
		{
			Name: string(model.OpCreateLicense),
			Fields: map[string]Field{
				"idToken":      tokenField(false),
				"plan":         {Type: TypeString, Required: true, MinLen: 3, MaxLen: 10, Pattern: planPattern},
				"validityDays": {Type: TypeInteger, Required: true, Min: i64(1), Max: i64(3650)},
			},
		},
		{
			Name: string(model.OpBanIP),
			Fields: map[string]Field{
				"idToken":   tokenField(false),
				"ipAddress": {Type: TypeString, Required: true, MinLen: 2, MaxLen: 45, Pattern: ipv4Pattern + `|` + ipv6Pattern},
				"reason":    {Type: TypeString, Required: true, MinLen: 5, MaxLen: 500},
				"duration":  {Type: TypeInteger, Required: true, Min: i64(1), Max: i64(36500)},
			},
		},
	}
}

// MustRegistry builds the default operation registry. The operation table
// is static, so a compile failure is a programming error.
func MustRegistry() *Registry {
	r, err := NewRegistry(Operations())
	if err != nil {
		panic(err)
	}
	return r
}
