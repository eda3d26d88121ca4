package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type scopeKey struct{}

// Scope holds one acquired connection. It MUST be closed.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection to the pool. Safe to call twice.
func (s *Scope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// GetScope returns the scope stored in ctx by SetScope.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	return scope, ok
}

// SetScope returns a copy of ctx carrying scope.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// Acquire takes a connection from the pool.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn}, nil
}

// WithConn runs fn on the connection of the scope stored in ctx, or on a
// freshly acquired one that is released when fn returns, even on error.
func (db *DB) WithConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	if scope, ok := GetScope(ctx); ok && scope.Conn != nil {
		return fn(scope.Conn)
	}

	scope, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()

	return fn(scope.Conn)
}
