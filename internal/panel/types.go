package panel

type object[T any] struct {
	Object     string `json:"object"`
	Attributes T      `json:"attributes"`
}

type list[T any] struct {
	Object string      `json:"object"`
	Data   []object[T] `json:"data"`
}

// User is a panel account.
type User struct {
	ID        int    `json:"id"`
	UUID      string `json:"uuid"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateUserRequest is the body of a create-account call.
type CreateUserRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password,omitempty"`
}

// Limits are a server's hard resource limits.
type Limits struct {
	Memory int `json:"memory"`
	Swap   int `json:"swap"`
	Disk   int `json:"disk"`
	IO     int `json:"io"`
	CPU    int `json:"cpu"`
}

// FeatureLimits bound optional panel features.
type FeatureLimits struct {
	Databases   int `json:"databases"`
	Backups     int `json:"backups"`
	Allocations int `json:"allocations"`
}

// Deploy selects where the panel places a new server.
type Deploy struct {
	Locations   []int    `json:"locations"`
	DedicatedIP bool     `json:"dedicated_ip"`
	PortRange   []string `json:"port_range"`
}

// CreateServerRequest is the body of a create-server call.
type CreateServerRequest struct {
	Name              string            `json:"name"`
	User              int               `json:"user"`
	Egg               int               `json:"egg"`
	DockerImage       string            `json:"docker_image"`
	Startup           string            `json:"startup"`
	Environment       map[string]string `json:"environment"`
	Limits            Limits            `json:"limits"`
	FeatureLimits     FeatureLimits     `json:"feature_limits"`
	Deploy            Deploy            `json:"deploy"`
	ExternalID        string            `json:"external_id"`
	StartOnCompletion bool              `json:"start_on_completion"`
}

// Server is a panel server.
type Server struct {
	ID         int    `json:"id"`
	UUID       string `json:"uuid"`
	Identifier string `json:"identifier"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	User       int    `json:"user"`
	Suspended  bool   `json:"suspended"`
	Limits     Limits `json:"limits"`
}

// Node is a panel node.
type Node struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	FQDN        string `json:"fqdn"`
	Maintenance bool   `json:"maintenance_mode"`
}
