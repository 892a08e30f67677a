package db

import (
	"context"
)

const deleteToken = `-- name: DeleteToken :execrows
DELETE
FROM session_tokens
WHERE token_key = $1
`

func (q *Queries) DeleteToken(ctx context.Context, tokenKey string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteToken, tokenKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getToken = `-- name: GetToken :one
SELECT token_key, token, updated_at
FROM session_tokens
WHERE token_key = $1
`

func (q *Queries) GetToken(ctx context.Context, tokenKey string) (SessionToken, error) {
	row := q.db.QueryRow(ctx, getToken, tokenKey)
	var i SessionToken
	err := row.Scan(&i.TokenKey, &i.Token, &i.UpdatedAt)
	return i, err
}

const lockToken = `-- name: LockToken :one
SELECT token_key, token, updated_at
FROM session_tokens
WHERE token_key = $1
FOR UPDATE
`

func (q *Queries) LockToken(ctx context.Context, tokenKey string) (SessionToken, error) {
	row := q.db.QueryRow(ctx, lockToken, tokenKey)
	var i SessionToken
	err := row.Scan(&i.TokenKey, &i.Token, &i.UpdatedAt)
	return i, err
}

const upsertToken = `-- name: UpsertToken :exec
INSERT INTO session_tokens (token_key, token)
VALUES ($1, $2)
ON CONFLICT (token_key) DO UPDATE
SET token      = EXCLUDED.token,
    updated_at = now()
`

type UpsertTokenParams struct {
	TokenKey string
	Token    string
}

func (q *Queries) UpsertToken(ctx context.Context, arg UpsertTokenParams) error {
	_, err := q.db.Exec(ctx, upsertToken, arg.TokenKey, arg.Token)
	return err
}
