// Package api contains the JSON types of the relay HTTP API.
package api

// TokenRequest представляет запрос на выдачу токена peer
type TokenRequest struct {
	Address string `json:"address"` // адрес peer в сцене
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	ExpiresIn   int64  `json:"expires_in"`   // время жизни токена в секундах
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Rooms   int    `json:"rooms"`
	Peers   int    `json:"peers"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// ContentTypeCRDT is the media type of a bare CRDT batch [kind][frames...].
const ContentTypeCRDT = "application/x-scenesync-crdt"
