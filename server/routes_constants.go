package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Broker commands, authenticated with a bearer session id
	RouteAPIPrefix = "/api/sso/"
	RouteLogin     = RouteAPIPrefix + "login"
	RouteLogout    = RouteAPIPrefix + "logout"
	RouteAttach    = RouteAPIPrefix + "attach"
	RouteUserInfo  = RouteAPIPrefix + "userInfo"

	// Browser login page, the session id is carried base64 encoded in the path.
	// Brokers should send URL-safe base64; the wildcard also takes the rest of
	// the path so a standard alphabet "/" still reaches the relay.
	RouteBrokerLogin = RouteAPIPrefix + "brokers/login/{token...}"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
