// Package seed loads sample herd data into an empty store.
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/auth"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	"github.com/mamadbah2/milkmatrix/internal/service/health"
	"github.com/mamadbah2/milkmatrix/internal/service/milk"
)

const (
	days         = 7
	veterinarian = "Dr. Smith"
)

var sampleCows = []models.Cow{
	{TagNumber: "001", Name: "Bessie", Breed: "Holstein", DateOfBirth: "2021-03-15", Notes: "High milk producer, excellent health record"},
	{TagNumber: "002", Name: "Luna", Breed: "Jersey", DateOfBirth: "2020-07-22", Notes: "Gentle temperament, consistent milk quality"},
	{TagNumber: "003", Name: "Maple", Breed: "Guernsey", DateOfBirth: "2021-11-08", Notes: "Young cow, good potential"},
	{TagNumber: "004", Name: "Daisy", Breed: "Holstein", DateOfBirth: "2019-12-03", Notes: "Experienced cow, reliable milk production"},
	{TagNumber: "005", Name: "Rosie", Breed: "Jersey", DateOfBirth: "2022-01-18", Notes: "Young cow, recently started milking"},
}

var sampleEvents = []struct {
	eventType   models.EventType
	description string
}{
	{models.EventVaccination, "Annual vaccination administered"},
	{models.EventRoutineCheck, "Routine health examination"},
	{models.EventTreatment, "Minor cut treatment on leg"},
}

// Result counts what was inserted.
type Result struct {
	Cows          int  `json:"cows"`
	MilkRecords   int  `json:"milk_records"`
	HealthRecords int  `json:"health_records"`
	Skipped       bool `json:"skipped"`
}

func (r Result) String() string {
	if r.Skipped {
		return "store already has cows, nothing seeded"
	}
	return fmt.Sprintf("seeded %d cows, %d milk records, %d health events", r.Cows, r.MilkRecords, r.HealthRecords)
}

// Seeder inserts the sample herd.
type Seeder struct {
	store  repository.Store
	milk   *milk.Service
	health *health.Service
	rng    *rand.Rand
	logger *zap.Logger
	now    func() time.Time
}

// New wires a seeder. Milk and health records go through their services so
// they are validated and graded like user input.
func New(store repository.Store, milkSvc *milk.Service, healthSvc *health.Service, rng *rand.Rand, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Seeder{store: store, milk: milkSvc, health: healthSvc, rng: rng, logger: logger, now: time.Now}
}

// Run seeds the store unless it already holds cows.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	existing, err := s.store.ListCows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("check existing cows: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("store already seeded", zap.Int("cows", len(existing)))
		return Result{Skipped: true}, nil
	}

	cows, err := s.store.InsertCows(ctx, sampleCows)
	if err != nil {
		return Result{}, fmt.Errorf("insert cows: %w", err)
	}
	result := Result{Cows: len(cows)}

	today := s.now()
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format(models.DateLayout)
		for _, cow := range cows {
			if err := s.addMilk(ctx, cow.ID, date, models.ShiftMorning, 15, 10, []models.Grade{models.GradeGood, models.GradeExcellent, models.GradeGood, models.GradeGood, models.GradeExcellent}, i == 0); err != nil {
				return result, err
			}
			if err := s.addMilk(ctx, cow.ID, date, models.ShiftEvening, 12, 8, []models.Grade{models.GradeGood, models.GradeExcellent, models.GradeGood}, false); err != nil {
				return result, err
			}
			result.MilkRecords += 2
		}
	}

	for i, cow := range cows {
		if i%2 != 0 {
			continue
		}
		event := sampleEvents[i%len(sampleEvents)]
		_, err := s.health.Create(ctx, auth.Session{DisplayName: veterinarian}, health.Input{
			CowID:       cow.ID,
			EventType:   string(event.eventType),
			EventDate:   today.AddDate(0, 0, -(i+1)*5).Format(models.DateLayout),
			Status:      string(models.StatusCompleted),
			Description: event.description,
		})
		if err != nil {
			return result, fmt.Errorf("insert health event for %s: %w", cow.TagNumber, err)
		}
		result.HealthRecords++
	}

	s.logger.Info("store seeded",
		zap.Int("cows", result.Cows),
		zap.Int("milk_records", result.MilkRecords),
		zap.Int("health_records", result.HealthRecords))
	return result, nil
}

func (s *Seeder) addMilk(ctx context.Context, cowID, date string, shift models.Shift, base, spread float64, grades []models.Grade, fresh bool) error {
	amount := math.Round((base+s.rng.Float64()*spread)*100) / 100
	in := milk.Input{
		CowID:   cowID,
		Date:    date,
		Shift:   string(shift),
		Amount:  &amount,
		Quality: string(grades[s.rng.Intn(len(grades))]),
	}
	if fresh {
		in.Notes = "Fresh morning milk"
	}
	if _, err := s.milk.Create(ctx, in); err != nil {
		return fmt.Errorf("insert %s milk for %s on %s: %w", shift, cowID, date, err)
	}
	return nil
}
