package models

// ConnectionStatus represents the transport session state as seen by
// UI consumers.
type ConnectionStatus string

const (
	StatusDisconnected  ConnectionStatus = "disconnected"
	StatusConnecting    ConnectionStatus = "connecting"
	StatusAwaitingAuth  ConnectionStatus = "awaiting_auth"
	StatusAuthenticated ConnectionStatus = "authenticated"
)
