package domain

// Operator roles carried in access tokens. Admins see every onboarding
// session; operators only the ones they started.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)
