package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilo/vigilo-backend/internal/config"
	"github.com/vigilo/vigilo-backend/internal/database"
	"github.com/vigilo/vigilo-backend/internal/logger"
	"github.com/vigilo/vigilo-backend/internal/model"
	"github.com/vigilo/vigilo-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	candidateRepo := repository.NewCandidateRepository(pool)

	fmt.Println("=== Seeding 40 Candidates ===")

	hashed, err := bcrypt.GenerateFromPassword([]byte("changeme123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	names := []string{
		"Aarav Sharma", "Bella Fernandes", "Chirag Mehta", "Divya Nair", "Evan D'Souza",
		"Farah Khan", "Gautam Iyer", "Hema Reddy", "Ishan Verma", "Jiya Patel",
		"Kunal Joshi", "Lara Pinto", "Manav Gupta", "Neha Kulkarni", "Omar Shaikh",
		"Priya Menon", "Quincy Lobo", "Ritu Saxena", "Sahil Bhat", "Tara Rao",
		"Uday Mishra", "Vani Desai", "Wasim Ansari", "Xavier Gomes", "Yamini Pillai",
		"Zoya Sheikh", "Akash Tiwari", "Bhavna Shetty", "Chetan Kamat", "Deepa Hegde",
		"Esha Naik", "Faisal Qureshi", "Gita Prabhu", "Harsh Dubey", "Indira Suri",
		"Jatin Malhotra", "Kavya Bhandari", "Lakshya Jain", "Meera Chawla", "Nikhil Arora",
	}

	schools := []string{"Engineering", "Science"}
	departments := []string{"CS", "EE", "MECH", "CIVIL"}
	batches := []string{"2023", "2024"}

	successCount := 0
	for i, name := range names {
		candidate := &model.Candidate{
			OrgID:        1,
			Name:         name,
			Email:        fmt.Sprintf("candidate%d@example.edu", i+1),
			School:       schools[i%len(schools)],
			Department:   departments[i%len(departments)],
			Batch:        batches[i%len(batches)],
			Semester:     (i % 8) + 1,
			PasswordHash: string(hashed),
		}

		if err := candidateRepo.Create(ctx, candidate); err != nil {
			fmt.Printf("Error creating candidate %s: %v\n", candidate.Email, err)
		} else {
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d candidates...\n", i+1)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d candidates.\n", successCount, len(names))
}
