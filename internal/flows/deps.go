package flows

// Deps groups flow dependency sets. The Engine builds this once and delegates
// request methods to the matching flow.
type Deps struct {
	UserLogin  LoginDeps
	AdminLogin LoginDeps
	Validate   ValidateDeps
	Logout     LogoutDeps
}
