package domain

import "time"

// User is the application record stored under the identity id.
type User struct {
	UserID      string    `gorm:"primaryKey;type:text" json:"userId" firestore:"userId"`
	DisplayName string    `gorm:"type:text" json:"displayName" firestore:"displayName"`
	Email       string    `gorm:"type:text;index" json:"email" firestore:"email"`
	PhotoURL    string    `gorm:"type:text" json:"photoUrl" firestore:"photoUrl"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt" firestore:"updatedAt"`
}

func (User) TableName() string { return "app_user" }

// UserFields is a partial field mapping keyed by the JSON/document field
// names of User.
type UserFields map[string]interface{}

const (
	FieldUserID      = "userId"
	FieldDisplayName = "displayName"
	FieldEmail       = "email"
	FieldPhotoURL    = "photoUrl"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

var editableFields = map[string]string{
	FieldDisplayName: "display_name",
	FieldEmail:       "email",
	FieldPhotoURL:    "photo_url",
}

// Editable drops keys that cannot be changed through an edit and reports
// whether anything is left.
func (f UserFields) Editable() (UserFields, bool) {
	out := UserFields{}
	for k, v := range f {
		if _, ok := editableFields[k]; ok {
			out[k] = v
		}
	}
	return out, len(out) > 0
}

// Columns maps editable document fields to SQL column names.
func (f UserFields) Columns() map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range f {
		if col, ok := editableFields[k]; ok {
			out[col] = v
		}
	}
	return out
}

// NewUser builds a record keyed by uid from a supplied field mapping. A
// userId present in fields is ignored; the key always equals uid.
func NewUser(uid string, fields UserFields, now time.Time) *User {
	u := &User{UserID: uid, CreatedAt: now, UpdatedAt: now}
	u.DisplayName, _ = fields[FieldDisplayName].(string)
	u.Email, _ = fields[FieldEmail].(string)
	u.PhotoURL, _ = fields[FieldPhotoURL].(string)
	return u
}

// Identity is the signed-in account as reported by the identity backend.
type Identity struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PhotoURL     string    `json:"photoUrl"`
	Provider     string    `json:"provider"`
	IDToken      string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)
