/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the internal
  domain model. Decimal amounts convert to floats at this boundary only;
  everything upstream stays exact.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers
*/
package api

import (
	"sort"

	"github.com/meridian/insight-engine/revenue"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RefreshResponse reports the outcome of a snapshot refresh.
type RefreshResponse struct {
	// Status is always human-readable: "ok" or a labeled degradation
	// such as "could not refresh: serving cached data".
	Status string         `json:"status"`
	AsOf   string         `json:"as_of"`
	Counts map[string]int `json:"record_counts"`
}

// StatusResponse exposes the engine's bookkeeping instants.
type StatusResponse struct {
	LastSync   *string `json:"last_sync"`
	LastRecalc *string `json:"last_recalculation"`
}

// DayTotalsDTO is one day of a project's financials.
type DayTotalsDTO struct {
	Date      string   `json:"date"`
	Hours     float64  `json:"hours"`
	Revenue   float64  `json:"revenue"`
	Employees []string `json:"employees,omitempty"`
	Tasks     []string `json:"tasks,omitempty"`
}

// ProjectFinancialsDTO is one project's aggregate.
type ProjectFinancialsDTO struct {
	TotalRevenue float64        `json:"total_revenue"`
	TotalHours   float64        `json:"total_hours"`
	Daily        []DayTotalsDTO `json:"daily_data"`
}

// FinancialsResponse is the aggregate cache as the dashboard renders it.
type FinancialsResponse struct {
	Projects     map[string]ProjectFinancialsDTO `json:"projects"`
	TotalRevenue float64                         `json:"total_revenue"`
	TotalHours   float64                         `json:"total_hours"`

	// Warning carries non-fatal degradations (e.g. cache write failed,
	// results are from memory only). Empty on the happy path.
	Warning string `json:"warning,omitempty"`
}

// RateDTO is one job title's configured rates, as entered by the user.
type RateDTO struct {
	JobTitle string `json:"job_title"`
	Cost     string `json:"cost"`
	Revenue  string `json:"revenue"`
}

// RatesResponse lists the rate table in stable title order.
type RatesResponse struct {
	Rates []RateDTO `json:"rates"`
}

// PutRatesRequest replaces the rate table.
type PutRatesRequest struct {
	Rates []RateDTO `json:"rates"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toFinancialsResponse(aggs revenue.Aggregates, warning string) FinancialsResponse {
	resp := FinancialsResponse{
		Projects: make(map[string]ProjectFinancialsDTO, len(aggs)),
		Warning:  warning,
	}
	for name, p := range aggs {
		dto := ProjectFinancialsDTO{
			TotalRevenue: p.TotalRevenue.InexactFloat64(),
			TotalHours:   p.TotalHours.InexactFloat64(),
			Daily:        make([]DayTotalsDTO, len(p.Daily)),
		}
		for i, d := range p.Daily {
			dto.Daily[i] = DayTotalsDTO{
				Date:      d.Date.String(),
				Hours:     d.Hours.InexactFloat64(),
				Revenue:   d.Revenue.InexactFloat64(),
				Employees: d.Employees,
				Tasks:     d.Tasks,
			}
		}
		resp.Projects[name] = dto
		resp.TotalRevenue += dto.TotalRevenue
		resp.TotalHours += dto.TotalHours
	}
	return resp
}

func toRatesResponse(rates revenue.RateTable) RatesResponse {
	resp := RatesResponse{Rates: make([]RateDTO, 0, len(rates))}
	for _, title := range rates.Titles() {
		rate := rates[title]
		resp.Rates = append(resp.Rates, RateDTO{
			JobTitle: title,
			Cost:     rate.Cost,
			Revenue:  rate.Revenue,
		})
	}
	sort.Slice(resp.Rates, func(i, j int) bool { return resp.Rates[i].JobTitle < resp.Rates[j].JobTitle })
	return resp
}

func fromRatesRequest(req PutRatesRequest) revenue.RateTable {
	rates := make(revenue.RateTable, len(req.Rates))
	for _, r := range req.Rates {
		if r.JobTitle == "" {
			continue
		}
		rates[r.JobTitle] = revenue.Rate{Cost: r.Cost, Revenue: r.Revenue}
	}
	return rates
}
