package common

type contextKey string

const (
	RequestIDContextKey  contextKey = "request_id"
	ClientIPContextKey   contextKey = "client_ip"
	AuthSignalContextKey contextKey = "auth_signal"
)
