package realtime

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role classifies a live connection. It is assigned once when the connection
// is accepted and never changes for the connection's lifetime.
type Role string

const (
	RolePresenter   Role = "presenter"
	RoleParticipant Role = "participant"
)

// Identity is the outcome of access verification, carried alongside the
// connection for its lifetime.
type Identity struct {
	Role        Role
	UserID      uuid.UUID // zero for anonymous participants
	DisplayName string
	Anonymous   bool
}

// Gate decides whether a new connection may enter and in which role.
// Presenters must present a valid signed token. Participants may present one
// or join anonymously, in which case a throwaway identity is minted for the
// connection.
type Gate struct {
	secret []byte
}

func NewGate(jwtSecret string) *Gate {
	return &Gate{secret: []byte(jwtSecret)}
}

// Authenticate resolves the identity for a new connection. wantPresenter is
// set when the client asked for the presenter role; token may be empty for
// participants.
func (g *Gate) Authenticate(wantPresenter bool, token string) (Identity, *Error) {
	if wantPresenter {
		if token == "" {
			return Identity{}, &Error{Code: CodeUnauthenticated, Message: "presenter token required"}
		}
		claims, err := g.parseClaims(token)
		if err != nil {
			return Identity{}, err
		}
		if role, _ := claims["role"].(string); role != string(RolePresenter) {
			return Identity{}, &Error{Code: CodeForbidden, Message: "token does not grant the presenter role"}
		}
		userID, err := userIDFromClaims(claims)
		if err != nil {
			return Identity{}, err
		}
		name, _ := claims["name"].(string)
		return Identity{Role: RolePresenter, UserID: userID, DisplayName: name}, nil
	}

	if token == "" {
		return Identity{
			Role:        RoleParticipant,
			DisplayName: RandomDisplayName(),
			Anonymous:   true,
		}, nil
	}

	claims, err := g.parseClaims(token)
	if err != nil {
		return Identity{}, err
	}
	userID, err := userIDFromClaims(claims)
	if err != nil {
		return Identity{}, err
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = RandomDisplayName()
	}
	return Identity{Role: RoleParticipant, UserID: userID, DisplayName: name}, nil
}

func (g *Gate) parseClaims(tokenString string) (jwt.MapClaims, *Error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, &Error{Code: CodeUnauthenticated, Message: "invalid or expired token"}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &Error{Code: CodeUnauthenticated, Message: "invalid token claims"}
	}
	return claims, nil
}

func userIDFromClaims(claims jwt.MapClaims) (uuid.UUID, *Error) {
	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, &Error{Code: CodeUnauthenticated, Message: "token missing user id"}
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &Error{Code: CodeUnauthenticated, Message: "malformed user id in token"}
	}
	return userID, nil
}
