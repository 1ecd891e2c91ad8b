package common

const (
	RequestIDHeader = "X-Request-Id"

	// Identity headers written by the auth collaborator in front of the gate.
	// Deployments must ensure the collaborator always overwrites them so
	// clients cannot inject their own.
	AuthUserHeader = "X-Auth-User"
	AuthRoleHeader = "X-Auth-Role"
)
