package common

// GetAccountFromArgs extracts the account name from request arguments,
// falling back to the configured account when the argument is absent.
func GetAccountFromArgs(args map[string]any, fallback string) string {
	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return fallback
}

// GetString returns a string argument or "" when it is absent or not a string.
func GetString(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

// GetBool returns a boolean argument, or def when it is absent.
func GetBool(args map[string]any, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}

// GetInt returns a numeric argument as int, or def when it is absent.
// JSON numbers arrive as float64.
func GetInt(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
