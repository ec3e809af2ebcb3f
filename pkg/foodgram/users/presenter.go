package users

import (
	"context"

	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
)

// UserResponse is the public profile with the viewer's subscription flag
type UserResponse struct {
	Email        string `json:"email"`
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

// Presenter renders users for a given viewer
type Presenter struct {
	subscriptions *relations.Store[models.Subscription]
}

// NewPresenter creates a presenter backed by the subscription store
func NewPresenter(subscriptions *relations.Store[models.Subscription]) *Presenter {
	return &Presenter{subscriptions: subscriptions}
}

// One renders a single user as seen by viewerID (0 for anonymous).
func (p *Presenter) One(ctx context.Context, viewerID uint, u models.User) (UserResponse, error) {
	many, err := p.Many(ctx, viewerID, []models.User{u})
	if err != nil {
		return UserResponse{}, err
	}
	return many[0], nil
}

// Many renders users, loading subscription flags in one query.
func (p *Presenter) Many(ctx context.Context, viewerID uint, users []models.User) ([]UserResponse, error) {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	subscribed, err := p.subscriptions.Marked(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = Render(u, subscribed[u.ID])
	}
	return out, nil
}

// Render maps a user with a known subscription flag
func Render(u models.User, subscribed bool) UserResponse {
	return UserResponse{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}
