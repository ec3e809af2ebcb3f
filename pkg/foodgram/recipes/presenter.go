package recipes

import (
	"context"

	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/tags"
	"github.com/mikepea/foodgram/pkg/foodgram/users"
)

// IngredientAmountResponse is one ingredient line of a recipe
type IngredientAmountResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeResponse is the full recipe representation
type RecipeResponse struct {
	ID               uint                       `json:"id"`
	Tags             []tags.TagResponse         `json:"tags"`
	Author           users.UserResponse         `json:"author"`
	Ingredients      []IngredientAmountResponse `json:"ingredients"`
	IsFavorited      bool                       `json:"is_favorited"`
	IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
	Name             string                     `json:"name"`
	Image            string                     `json:"image"`
	Text             string                     `json:"text"`
	CookingTime      int                        `json:"cooking_time"`
}

// RecipeShortResponse is the compact form used by favorites, carts and
// subscription listings
type RecipeShortResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// Short maps a recipe to its compact form
func Short(r models.Recipe) RecipeShortResponse {
	return RecipeShortResponse{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

// Presenter renders recipes with the viewer's favorite, cart and
// subscription flags
type Presenter struct {
	favorites *relations.Store[models.Favorite]
	cart      *relations.Store[models.ShoppingCartItem]
	users     *users.Presenter
}

// NewPresenter creates a recipe presenter
func NewPresenter(favorites *relations.Store[models.Favorite], cart *relations.Store[models.ShoppingCartItem],
	userPresenter *users.Presenter) *Presenter {
	return &Presenter{favorites: favorites, cart: cart, users: userPresenter}
}

// One renders a single recipe as seen by viewerID.
func (p *Presenter) One(ctx context.Context, viewerID uint, r models.Recipe) (RecipeResponse, error) {
	many, err := p.Many(ctx, viewerID, []models.Recipe{r})
	if err != nil {
		return RecipeResponse{}, err
	}
	return many[0], nil
}

// Many renders recipes with one flag query per relation.
func (p *Presenter) Many(ctx context.Context, viewerID uint, recipes []models.Recipe) ([]RecipeResponse, error) {
	ids := make([]uint, len(recipes))
	var authors []models.User
	seen := make(map[uint]bool)
	for i, r := range recipes {
		ids[i] = r.ID
		if !seen[r.AuthorID] {
			seen[r.AuthorID] = true
			authors = append(authors, r.Author)
		}
	}

	favorited, err := p.favorites.Marked(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	inCart, err := p.cart.Marked(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	rendered, err := p.users.Many(ctx, viewerID, authors)
	if err != nil {
		return nil, err
	}
	byAuthor := make(map[uint]users.UserResponse, len(rendered))
	for _, u := range rendered {
		byAuthor[u.ID] = u
	}

	out := make([]RecipeResponse, len(recipes))
	for i, r := range recipes {
		ingredients := make([]IngredientAmountResponse, len(r.Ingredients))
		for j, ri := range r.Ingredients {
			ingredients[j] = IngredientAmountResponse{
				ID:              ri.IngredientID,
				Name:            ri.Ingredient.Name,
				MeasurementUnit: ri.Ingredient.MeasurementUnit,
				Amount:          ri.Amount,
			}
		}
		out[i] = RecipeResponse{
			ID:               r.ID,
			Tags:             tags.ToResponses(r.Tags),
			Author:           byAuthor[r.AuthorID],
			Ingredients:      ingredients,
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		}
	}
	return out, nil
}
