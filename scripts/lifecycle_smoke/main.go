// Command lifecycle_smoke drives a running API through create, approve and
// cancel and checks the balance ends where it started.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/pkg/client"
)

type step struct {
	Name     string
	Err      error
	Duration time.Duration
	Detail   string
}

func main() {
	var (
		base         string
		employee     string
		employeePass string
		reviewer     string
		reviewerPass string
		startRaw     string
		days         int
		timeout      time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api", "API base URL including prefix")
	flag.StringVar(&employee, "employee", "", "collaborator email")
	flag.StringVar(&employeePass, "employee-password", "", "collaborator password")
	flag.StringVar(&reviewer, "reviewer", "", "manager or admin email")
	flag.StringVar(&reviewerPass, "reviewer-password", "", "manager or admin password")
	flag.StringVar(&startRaw, "start", time.Now().AddDate(0, 1, 0).Format(models.DateLayout), "first vacation day (YYYY-MM-DD)")
	flag.IntVar(&days, "days", 3, "vacation length in days")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if employee == "" || reviewer == "" {
		log.Fatal("-employee and -reviewer are required")
	}
	start, err := models.ParseDate(startRaw)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end := models.Date{Time: start.AddDate(0, 0, days-1)}

	ctx := context.Background()
	collab := client.New(base, nil, client.WithTimeout(timeout))
	manager := client.New(base, nil, client.WithTimeout(timeout))

	var (
		steps   []step
		before  *models.VacationBalance
		request *client.VacationResult
	)
	run := func(name string, fn func() (string, error)) bool {
		began := time.Now()
		detail, err := fn()
		steps = append(steps, step{Name: name, Err: err, Duration: time.Since(began), Detail: detail})
		return err == nil
	}

	ok := run("login employee", func() (string, error) {
		u, err := collab.Login(ctx, employee, employeePass)
		if err != nil {
			return "", err
		}
		if u.EmployeeID == nil {
			return "", errors.New("account has no linked employee")
		}
		return string(u.Role), nil
	}) && run("login reviewer", func() (string, error) {
		u, err := manager.Login(ctx, reviewer, reviewerPass)
		if err != nil {
			return "", err
		}
		return string(u.Role), nil
	}) && run("read balance", func() (string, error) {
		p := collab.Session().Principal()
		b, err := collab.Balance(ctx, p.EmployeeID, start.Year())
		if err != nil {
			return "", err
		}
		before = b
		return fmt.Sprintf("%d/%d used", b.UsedDays, b.EntitledDays), nil
	}) && run("create", func() (string, error) {
		res, err := collab.CreateVacation(ctx, models.CreateVacationRequest{StartDate: start, EndDate: end})
		if err != nil {
			return "", err
		}
		request = res
		return fmt.Sprintf("%s %s %d days", res.Request.ID, res.Request.Status, res.Request.DaysCount), nil
	}) && run("approve", func() (string, error) {
		res, err := manager.ApproveVacation(ctx, request.Request.ID, nil)
		if err != nil {
			return "", err
		}
		if res.Balance == nil || res.Balance.UsedDays != before.UsedDays+request.Request.DaysCount {
			return "", errors.New("balance was not charged")
		}
		return fmt.Sprintf("%d remaining", res.Balance.RemainingDays), nil
	}) && run("cancel", func() (string, error) {
		res, err := collab.CancelVacation(ctx, request.Request.ID)
		if err != nil {
			return "", err
		}
		if res.Balance == nil || res.Balance.UsedDays != before.UsedDays {
			return "", errors.New("balance was not restored")
		}
		return fmt.Sprintf("%d remaining", res.Balance.RemainingDays), nil
	})

	_ = collab.Logout(ctx)
	_ = manager.Logout(ctx)

	printReport(steps)
	if !ok {
		os.Exit(1)
	}
}

func printReport(steps []step) {
	fmt.Println("Lifecycle Smoke Report")
	fmt.Println("======================")
	for _, s := range steps {
		status := "OK"
		if s.Err != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s (%s)\n", status, s.Name, s.Duration.Round(time.Millisecond))
		if s.Err != nil {
			fmt.Printf("  Error: %v\n", s.Err)
		} else if s.Detail != "" {
			fmt.Printf("  %s\n", s.Detail)
		}
	}
}
