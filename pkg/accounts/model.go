package accounts

import "time"

// Account is a stored user account.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       *int      `json:"age"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateInput is the payload for creating an account.
type CreateInput struct {
	Name  string `json:"name" validate:"required,min=2,max=30"`
	Email string `json:"email" validate:"required,email,min=5,max=50"`
	Age   *int   `json:"age" validate:"omitnil,min=0,max=110"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name  *string `json:"name" validate:"omitnil,min=2,max=30"`
	Email *string `json:"email" validate:"omitnil,email,min=5,max=50"`
	Age   *int    `json:"age" validate:"omitnil,min=0,max=110"`
}

// apply copies the set fields of in onto a.
func (in UpdateInput) apply(a Account) Account {
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Email != nil {
		a.Email = *in.Email
	}
	if in.Age != nil {
		v := *in.Age
		a.Age = &v
	}
	return a
}
