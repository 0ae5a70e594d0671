package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avendano/forecourt/internal/models"
)

// CountRow is a single label/count bucket in an aggregate result.
type CountRow struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// TrendPoint is one day in the recent-ticket trend.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// TicketStats aggregates ticket counts for the operator dashboard.
type TicketStats struct {
	Total      int64        `json:"total"`
	ByStatus   []CountRow   `json:"byStatus"`
	ByCategory []CountRow   `json:"byCategory"`
	ByPriority []CountRow   `json:"byPriority"`
	Recent     []TrendPoint `json:"recentTrend"`
}

// Stats computes ticket aggregates. The daily trend covers the last seven
// days and is bucketed in Go so the query stays portable across sqlite and
// mysql.
func (s *TicketStore) Stats() (*TicketStats, error) {
	stats := &TicketStats{}

	if err := s.db.Model(&models.Ticket{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("store: ticket total: %w", err)
	}

	var err error
	if stats.ByStatus, err = s.countBy("status"); err != nil {
		return nil, err
	}
	if stats.ByCategory, err = s.countBy("category"); err != nil {
		return nil, err
	}
	if stats.ByPriority, err = s.countBy("priority"); err != nil {
		return nil, err
	}

	if stats.Recent, err = s.recentTrend(7); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *TicketStore) countBy(column string) ([]CountRow, error) {
	var rows []CountRow
	err := s.db.Model(&models.Ticket{}).
		Select(column + " AS label, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: ticket count by %s: %w", column, err)
	}
	return rows, nil
}

func (s *TicketStore) recentTrend(days int) ([]TrendPoint, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	since := midnight.AddDate(0, 0, -(days - 1))

	var created []time.Time
	err := s.db.Model(&models.Ticket{}).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Pluck("created_at", &created).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("store: ticket trend: %w", err)
	}

	buckets := make(map[string]int64, days)
	for _, ts := range created {
		buckets[ts.Format("2006-01-02")]++
	}

	points := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		points = append(points, TrendPoint{Date: day, Count: buckets[day]})
	}
	return points, nil
}
