package fakeapi

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type user struct {
	ID           int        `json:"id"`
	UserID       string     `json:"user_id"`
	UserName     string     `json:"user_name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogined  *time.Time `json:"last_logined"`
	passwordHash string
	tokenVersion int
	active       bool
}

type userRepo struct {
	lock     sync.RWMutex
	byID     map[int]*user
	byUserID map[string]*user
	nextID   int
}

func newUserRepo() *userRepo {
	return &userRepo{
		byID:     make(map[int]*user),
		byUserID: make(map[string]*user),
		nextID:   1,
	}
}

func hashPassword(password string) (string, error) {
	// MinCost keeps test logins fast; nothing here protects real secrets.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hash), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (r *userRepo) add(userID, password, role string, now time.Time) (*user, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	u := &user{
		ID:           r.nextID,
		UserID:       userID,
		UserName:     userID,
		Email:        userID + "@example.com",
		Role:         role,
		CreatedAt:    now,
		passwordHash: hash,
		active:       true,
	}
	r.nextID++
	r.byID[u.ID] = u
	r.byUserID[userID] = u
	return u, nil
}

// authenticate returns a copy of the user when the password matches.
func (r *userRepo) authenticate(userID, password string, now time.Time) (user, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.byUserID[userID]
	if !ok || !checkPasswordHash(password, u.passwordHash) {
		return user{}, false
	}
	if u.active {
		u.LastLogined = &now
	}
	return *u, true
}

func (r *userRepo) get(id int) (user, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (r *userRepo) getByUserID(userID string) (user, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	u, ok := r.byUserID[userID]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (r *userRepo) all() []user {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make([]user, 0, len(r.byID))
	for id := 1; id < r.nextID; id++ {
		if u, ok := r.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out
}

// deactivate marks the account withdrawn and invalidates every token issued
// for it by bumping the token version.
func (r *userRepo) deactivate(id int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if u, ok := r.byID[id]; ok {
		u.active = false
		u.tokenVersion++
	}
}
