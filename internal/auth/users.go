package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown username or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is an account that can log in.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	StudentID    string `json:"studentId,omitempty"`
	passwordHash []byte
}

// Users is an in-memory account list with bcrypt-hashed passwords.
type Users struct {
	mu     sync.RWMutex
	byName map[string]User
	cost   int
}

// NewUsers creates an empty account list. cost <= 0 uses bcrypt.DefaultCost.
func NewUsers(cost int) *Users {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Users{byName: make(map[string]User), cost: cost}
}

// Add hashes password and stores the account, replacing any with the same username.
func (u *Users) Add(user User, password string) error {
	if user.Username == "" || user.Role == "" {
		return errors.New("username and role required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return err
	}
	user.passwordHash = hash
	u.mu.Lock()
	u.byName[user.Username] = user
	u.mu.Unlock()
	return nil
}

// Authenticate checks username and password.
func (u *Users) Authenticate(username, password string) (User, error) {
	u.mu.RLock()
	user, ok := u.byName[username]
	u.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// SeedDemo adds the demo accounts: an admin, a faculty member, and a
// student account linked to student "1".
func SeedDemo(u *Users) error {
	demo := []struct {
		user     User
		password string
	}{
		{User{ID: "1", Username: "admin", Role: RoleAdmin}, "admin123"},
		{User{ID: "2", Username: "faculty", Role: RoleFaculty}, "faculty123"},
		{User{ID: "3", Username: "student", Role: RoleStudent, StudentID: "1"}, "student123"},
	}
	for _, d := range demo {
		if err := u.Add(d.user, d.password); err != nil {
			return err
		}
	}
	return nil
}
