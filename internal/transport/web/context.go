package web

import "context"

// ContextKey is a custom type used for creating context keys.
// Using a custom type for context keys helps prevent collisions between keys
// defined in different packages.
type ContextKey string

const (
	// ClaimsContextKey stores the validated JWT claims / Stocke les claims JWT validés
	ClaimsContextKey = ContextKey("claims")
	// userIDContextKey stores the authenticated user id / Stocke l'id de l'utilisateur authentifié
	userIDContextKey = ContextKey("user_id")
	// cookieAuthContextKey is set when the token came from the cookie / Positionné si le token vient du cookie
	cookieAuthContextKey = ContextKey("cookie_auth")
	requestIDContextKey  = ContextKey("request_id")
)

// UserIDFrom returns the authenticated user id / Retourne l'id de l'utilisateur authentifié
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}

func authenticatedByCookie(ctx context.Context) bool {
	v, _ := ctx.Value(cookieAuthContextKey).(bool)
	return v
}

// GetRequestID extracts request ID from context / Extrait l'ID de la requête du contexte
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}
