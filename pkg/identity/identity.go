// Package identity is the user directory: subject → user resolution, the
// active friend list consumed by the realtime engine, and the friend-request
// workflow that originates notification events.
package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is a directory record. PublicID is the externally shareable identifier,
// distinct from the internal subject id.
type User struct {
	PublicID    string    `json:"public_id"`
	UserName    string    `json:"user_name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Friend is one entry of a user's active friend list.
type Friend struct {
	PublicID    string `json:"public_id"`
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name"`
}

// FriendRequest is a pending (not yet active) friendship edge.
type FriendRequest struct {
	PublicID    string `json:"public_id"`
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name"`
	Incoming    bool   `json:"incoming"`
}

// Directory answers identity and friendship queries against Postgres.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// GetUser resolves an authenticated subject to its directory record.
func (d *Directory) GetUser(ctx context.Context, subject string) (User, error) {
	var u User
	err := d.db.QueryRowContext(ctx,
		`SELECT public_id, user_name, display_name, created_at FROM users WHERE user_id = $1`,
		subject,
	).Scan(&u.PublicID, &u.UserName, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", classify(err))
	}
	return u, nil
}

// GetActiveFriends returns the current active friends of a subject. A
// friendship is active once active_since is set; rows without it are pending
// requests and are excluded here.
func (d *Directory) GetActiveFriends(ctx context.Context, subject string) ([]Friend, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT u.public_id, u.user_name, u.display_name
		 FROM friendships f
		 JOIN users u ON u.user_id = (CASE WHEN f.user1 = $1 THEN f.user2 ELSE f.user1 END)
		 WHERE f.active_since IS NOT NULL AND (f.user1 = $1 OR f.user2 = $1)
		 ORDER BY u.display_name`,
		subject,
	)
	if err != nil {
		return nil, fmt.Errorf("get active friends: %w", classify(err))
	}
	defer rows.Close()

	var friends []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.PublicID, &f.UserName, &f.DisplayName); err != nil {
			return nil, fmt.Errorf("get active friends: %w", classify(err))
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get active friends: %w", classify(err))
	}
	return friends, nil
}

// GetFriends returns the active friend list plus pending requests, incoming
// requests first.
func (d *Directory) GetFriends(ctx context.Context, subject string) ([]Friend, []FriendRequest, error) {
	friends, err := d.GetActiveFriends(ctx, subject)
	if err != nil {
		return nil, nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT u.public_id, u.user_name, u.display_name,
		        (CASE WHEN f.user1 = $1 THEN false ELSE true END) AS incoming
		 FROM friendships f
		 JOIN users u ON u.user_id = (CASE WHEN f.user1 = $1 THEN f.user2 ELSE f.user1 END)
		 WHERE f.active_since IS NULL AND (f.user1 = $1 OR f.user2 = $1)
		 ORDER BY incoming DESC`,
		subject,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("get friend requests: %w", classify(err))
	}
	defer rows.Close()

	var requests []FriendRequest
	for rows.Next() {
		var r FriendRequest
		if err := rows.Scan(&r.PublicID, &r.UserName, &r.DisplayName, &r.Incoming); err != nil {
			return nil, nil, fmt.Errorf("get friend requests: %w", classify(err))
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("get friend requests: %w", classify(err))
	}
	return friends, requests, nil
}

// resolveSubject looks up the internal subject id for a username.
func (d *Directory) resolveSubject(ctx context.Context, username string) (string, User, error) {
	var subject string
	var u User
	err := d.db.QueryRowContext(ctx,
		`SELECT user_id, public_id, user_name, display_name, created_at FROM users WHERE user_name = $1`,
		username,
	).Scan(&subject, &u.PublicID, &u.UserName, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return "", User{}, classify(err)
	}
	return subject, u, nil
}

// CreateFriendRequest records a pending friendship edge from subject to the
// named user and returns the target's record. Duplicate edges in either
// direction are ErrAlreadyActive; requesting yourself is ErrSelfReference.
func (d *Directory) CreateFriendRequest(ctx context.Context, subject, targetUserName string) (User, error) {
	target, targetUser, err := d.resolveSubject(ctx, targetUserName)
	if err != nil {
		return User{}, fmt.Errorf("create friend request: %w", err)
	}
	if target == subject {
		return User{}, fmt.Errorf("create friend request: %w", ErrSelfReference)
	}

	var existing int
	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM friendships
		 WHERE (user1 = $1 AND user2 = $2) OR (user1 = $2 AND user2 = $1)`,
		subject, target,
	).Scan(&existing)
	if err != nil {
		return User{}, fmt.Errorf("create friend request: %w", classify(err))
	}
	if existing > 0 {
		return User{}, fmt.Errorf("create friend request: %w", ErrAlreadyActive)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO friendships (user1, user2, active_since) VALUES ($1, $2, NULL)`,
		subject, target,
	)
	if err != nil {
		return User{}, fmt.Errorf("create friend request: %w", classify(err))
	}
	return targetUser, nil
}

// AcceptFriendRequest activates the pending request the named user sent to
// subject. No matching pending request is ErrNotFound.
func (d *Directory) AcceptFriendRequest(ctx context.Context, subject, requesterUserName string) (User, error) {
	requester, requesterUser, err := d.resolveSubject(ctx, requesterUserName)
	if err != nil {
		return User{}, fmt.Errorf("accept friend request: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE friendships SET active_since = NOW()
		 WHERE active_since IS NULL AND user1 = $1 AND user2 = $2`,
		requester, subject,
	)
	if err != nil {
		return User{}, fmt.Errorf("accept friend request: %w", classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return User{}, fmt.Errorf("accept friend request: %w", classify(err))
	}
	if affected == 0 {
		return User{}, fmt.Errorf("accept friend request: %w", ErrNotFound)
	}
	return requesterUser, nil
}

// DeleteFriend removes the friendship or pending request between subject and
// the named user, returning the removed user's record so the caller can
// notify them. No edge is ErrNotFound.
func (d *Directory) DeleteFriend(ctx context.Context, subject, username string) (User, error) {
	other, otherUser, err := d.resolveSubject(ctx, username)
	if err != nil {
		return User{}, fmt.Errorf("delete friend: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		`DELETE FROM friendships
		 WHERE (user1 = $1 AND user2 = $2) OR (user1 = $2 AND user2 = $1)`,
		subject, other,
	)
	if err != nil {
		return User{}, fmt.Errorf("delete friend: %w", classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return User{}, fmt.Errorf("delete friend: %w", classify(err))
	}
	if affected == 0 {
		return User{}, fmt.Errorf("delete friend: %w", ErrNotFound)
	}
	return otherUser, nil
}
