// Package report aggregates pothole and vehicle records into the dashboard
// summary and the analytics charts.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"potholewatch/internal/model"
)

const (
	months = 6
	days   = 7
)

type PotholeLister interface {
	List(filter model.PotholeFilter) ([]model.Pothole, error)
}

type VehicleLister interface {
	List() ([]model.Vehicle, error)
}

type UnreadCounter interface {
	UnreadCount() (int, error)
}

// Summary backs the dashboard stat cards.
type Summary struct {
	Total               int `json:"total"`
	High                int `json:"high"`
	Medium              int `json:"medium"`
	Low                 int `json:"low"`
	Pending             int `json:"pending"`
	Verified            int `json:"verified"`
	Repaired            int `json:"repaired"`
	ActiveVehicles      int `json:"active_vehicles"`
	TotalVehicles       int `json:"total_vehicles"`
	UnreadNotifications int `json:"unread_notifications"`
}

// Slice is one named value of a distribution chart.
type Slice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type Month struct {
	Month    string `json:"month"`
	Total    int    `json:"total"`
	High     int    `json:"high"`
	Medium   int    `json:"medium"`
	Low      int    `json:"low"`
	Repaired int    `json:"repaired"`
}

type Day struct {
	Day        string `json:"day"`
	Date       string `json:"date"`
	Detections int    `json:"detections"`
	High       int    `json:"high"`
	Medium     int    `json:"medium"`
	Low        int    `json:"low"`
}

// VehiclePerformance is the share of a vehicle's detections that were verified.
type VehiclePerformance struct {
	Name       string  `json:"name"`
	VehicleID  string  `json:"vehicle_id"`
	Detections int     `json:"detections"`
	Efficiency float64 `json:"efficiency"`
}

type Analytics struct {
	Severity         []Slice              `json:"severity"`
	Status           []Slice              `json:"status"`
	Monthly          []Month              `json:"monthly"`
	Daily            []Day                `json:"daily"`
	Vehicles         []VehiclePerformance `json:"vehicles"`
	VerificationRate float64              `json:"verification_rate"`
	RepairRate       float64              `json:"repair_rate"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

type Service struct {
	potholes      PotholeLister
	vehicles      VehicleLister
	notifications UnreadCounter
}

func NewService(potholes PotholeLister, vehicles VehicleLister, notifications UnreadCounter) *Service {
	return &Service{potholes: potholes, vehicles: vehicles, notifications: notifications}
}

func (s *Service) Summary() (*Summary, error) {
	potholes, err := s.potholes.List(model.PotholeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list potholes: %w", err)
	}
	vehicles, err := s.vehicles.List()
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	unread, err := s.notifications.UnreadCount()
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	sum := &Summary{Total: len(potholes), TotalVehicles: len(vehicles), UnreadNotifications: unread}
	for _, p := range potholes {
		switch p.Severity {
		case model.SeverityHigh:
			sum.High++
		case model.SeverityMedium:
			sum.Medium++
		case model.SeverityLow:
			sum.Low++
		}
		switch p.Status {
		case model.StatusPending:
			sum.Pending++
		case model.StatusVerified:
			sum.Verified++
		case model.StatusRepaired:
			sum.Repaired++
		}
	}
	for _, v := range vehicles {
		if v.IsActive {
			sum.ActiveVehicles++
		}
	}
	return sum, nil
}

// Analytics builds every chart relative to now. Calendar buckets use now's
// location.
func (s *Service) Analytics(now time.Time) (*Analytics, error) {
	potholes, err := s.potholes.List(model.PotholeFilter{})
	if err != nil {
		return nil, fmt.Errorf("list potholes: %w", err)
	}
	vehicles, err := s.vehicles.List()
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return Build(potholes, vehicles, now), nil
}

// Build is the pure aggregation behind Analytics.
func Build(potholes []model.Pothole, vehicles []model.Vehicle, now time.Time) *Analytics {
	loc := now.Location()
	a := &Analytics{
		Severity:    distribution(potholes, []string{"high", "medium", "low"}, func(p model.Pothole) string { return string(p.Severity) }),
		Status:      distribution(potholes, []string{"pending", "verified", "repaired"}, func(p model.Pothole) string { return string(p.Status) }),
		Monthly:     make([]Month, 0, months),
		Daily:       make([]Day, 0, days),
		Vehicles:    make([]VehiclePerformance, 0, len(vehicles)),
		GeneratedAt: now.UTC(),
	}

	for i := months - 1; i >= 0; i-- {
		start := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, loc)
		m := Month{Month: start.Format("Jan")}
		for _, p := range potholes {
			created := p.CreatedAt.In(loc)
			if created.Year() != start.Year() || created.Month() != start.Month() {
				continue
			}
			m.Total++
			switch p.Severity {
			case model.SeverityHigh:
				m.High++
			case model.SeverityMedium:
				m.Medium++
			case model.SeverityLow:
				m.Low++
			}
			if p.Status == model.StatusRepaired {
				m.Repaired++
			}
		}
		a.Monthly = append(a.Monthly, m)
	}

	for i := days - 1; i >= 0; i-- {
		date := time.Date(now.Year(), now.Month(), now.Day()-i, 0, 0, 0, 0, loc)
		d := Day{Day: date.Format("Mon"), Date: date.Format("2006-01-02")}
		for _, p := range potholes {
			created := p.CreatedAt.In(loc)
			if created.Year() != date.Year() || created.YearDay() != date.YearDay() {
				continue
			}
			d.Detections++
			switch p.Severity {
			case model.SeverityHigh:
				d.High++
			case model.SeverityMedium:
				d.Medium++
			case model.SeverityLow:
				d.Low++
			}
		}
		a.Daily = append(a.Daily, d)
	}

	for _, v := range vehicles {
		perf := VehiclePerformance{Name: v.Name, VehicleID: v.VehicleID}
		verified := 0
		for _, p := range potholes {
			if p.VehicleID != v.VehicleID {
				continue
			}
			perf.Detections++
			if p.Status == model.StatusVerified {
				verified++
			}
		}
		perf.Efficiency = percent(verified, perf.Detections)
		a.Vehicles = append(a.Vehicles, perf)
	}

	var verified, repaired int
	for _, p := range potholes {
		switch p.Status {
		case model.StatusVerified:
			verified++
		case model.StatusRepaired:
			repaired++
		}
	}
	a.VerificationRate = percent(verified, len(potholes))
	a.RepairRate = percent(repaired, len(potholes))
	return a
}

// distribution counts potholes per key in the given order, omitting keys
// with no potholes.
func distribution(potholes []model.Pothole, order []string, key func(model.Pothole) string) []Slice {
	counts := make(map[string]int, len(order))
	for _, p := range potholes {
		counts[key(p)]++
	}
	out := make([]Slice, 0, len(order))
	for _, k := range order {
		if counts[k] == 0 {
			continue
		}
		out = append(out, Slice{Name: strings.ToUpper(k[:1]) + k[1:], Value: counts[k]})
	}
	return out
}

// percent rounds to one decimal place; zero when total is zero.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
