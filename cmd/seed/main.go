package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"agenthub/internal/config"
	"agenthub/internal/db"
	"agenthub/internal/model"
	"agenthub/internal/repository"
)

const (
	demoEmail    = "demo@agenthub.local"
	demoPassword = "demo-password"
	demoName     = "Demo User"
)

// demoProjects are created for the demo user when missing, matched by name.
var demoProjects = []model.Project{
	{
		Name:         "Support assistant",
		Description:  "Answers customer questions politely and briefly.",
		SystemPrompt: "You are a friendly support agent. Keep answers short and ask for details when a question is ambiguous.",
	},
	{
		Name:        "Scratchpad",
		Description: "A plain assistant with no system prompt.",
	},
}

func main() {
	log.Println("Starting seed script...")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	ctx := context.Background()
	user, created, err := seedUser(ctx, repository.NewUserRepository(gormDB))
	if err != nil {
		log.Fatalf("Failed to seed user: %v", err)
	}
	if created {
		log.Printf("Created demo user %s (password %q)", user.Email, demoPassword)
	} else {
		log.Printf("Demo user %s already exists", user.Email)
	}

	seeded, err := seedProjects(ctx, repository.NewProjectRepository(gormDB), user)
	if err != nil {
		log.Fatalf("Failed to seed projects: %v", err)
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New projects created: %d", seeded)
	log.Printf("  - Existing projects kept: %d", len(demoProjects)-seeded)
}

// seedUser returns the demo user, creating it on first run.
func seedUser(ctx context.Context, repo repository.UserRepository) (*model.User, bool, error) {
	existing, err := repo.FindByEmail(ctx, demoEmail)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("error checking user %s: %w", demoEmail, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{Email: demoEmail, Name: demoName, PasswordHash: string(hash)}
	if err := repo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("error creating user %s: %w", demoEmail, err)
	}
	return user, true, nil
}

// seedProjects creates any demo project the user does not have yet.
func seedProjects(ctx context.Context, repo repository.ProjectRepository, owner *model.User) (int, error) {
	existing, err := repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return 0, fmt.Errorf("error listing projects: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[strings.ToLower(p.Name)] = true
	}

	seeded := 0
	for _, tmpl := range demoProjects {
		if have[strings.ToLower(tmpl.Name)] {
			continue
		}
		project := tmpl
		project.OwnerID = owner.ID
		if err := repo.Create(ctx, &project); err != nil {
			return seeded, fmt.Errorf("error creating project %q: %w", tmpl.Name, err)
		}
		seeded++
	}
	return seeded, nil
}
