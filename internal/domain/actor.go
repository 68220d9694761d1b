package domain

type ActorRole string

const (
	ActorAdmin   ActorRole = "admin"
	ActorManager ActorRole = "manager"
	ActorUser    ActorRole = "user"
	ActorSystem  ActorRole = "system"
)

// Actor is the identity on whose behalf an operation runs. It is always
// passed explicitly; nothing reads it from ambient state.
type Actor struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Role     ActorRole `json:"role"`
}

func (a Actor) IsPrivileged() bool {
	return a.Role == ActorAdmin || a.Role == ActorSystem
}

// SystemActor is used by background intake, which acts for the customer
// named in the reservation itself.
func SystemActor(name string) Actor {
	return Actor{UserID: name, Username: name, Role: ActorSystem}
}
