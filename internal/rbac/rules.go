package rbac

// Default policy for the engine's HTTP surface. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"test:view",
		"submission:start",
		"submission:submit",
		"submission:view-own",
	},
	"teacher": {
		"test:*",
		"submission:*",
		"attendance:*",
		"evaluation:*",
		"report:*",
	},
	"admin": {
		"*", // everything
	},
}
