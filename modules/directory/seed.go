package directory

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/example/group-chat-demo/domain/chat"
)

// seedBcryptCost keeps first-start seeding fast; real registrations go
// through the auth module's hasher.
const seedBcryptCost = 10

// Seed populates an empty database with two demo accounts, a default
// group and its channels, so the application is usable immediately
// after first start.
func Seed(store *Store) error {
	if _, err := store.GetUserByUsername("bailey"); err == nil {
		return nil // already seeded
	}

	hash := func(password string) (string, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(password), seedBcryptCost)
		if err != nil {
			return "", err
		}
		return string(h), nil
	}

	adminHash, err := hash("hello")
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}
	userHash, err := hash("password")
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	admin := &domain.User{
		Username:     "bailey",
		PasswordHash: adminHash,
		Roles:        domain.RoleSuperAdmin,
		CreatedAt:    time.Now(),
	}
	if err := store.CreateUser(admin); err != nil {
		return err
	}

	user := &domain.User{
		Username:     "user",
		PasswordHash: userHash,
		Roles:        domain.RoleUser,
		CreatedAt:    time.Now(),
	}
	if err := store.CreateUser(user); err != nil {
		return err
	}

	group, err := store.CreateGroup("General", admin.ID)
	if err != nil {
		return err
	}
	if err := store.AddMember(group.ID, user.ID); err != nil {
		return err
	}

	for _, name := range []string{"general", "random"} {
		if _, err := store.CreateChannel(group.ID, name); err != nil {
			return err
		}
	}

	log.Printf("[directory] Seeded demo data (group: %s)", group.ID)
	return nil
}
