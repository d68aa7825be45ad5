package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/money"
)

const (
	maxPromptProducts = 50
	recentEntries     = 5
	recentSales       = 5
	customerHistory   = 10
)

type productSnapshot struct {
	Name     string `json:"name"`
	Stock    int    `json:"stock"`
	MinStock int    `json:"min"`
	Sell     string `json:"sell"`
}

type entrySnapshot struct {
	Description string `json:"description"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type saleSnapshot struct {
	ID      string   `json:"id,omitempty"`
	Date    string   `json:"date,omitempty"`
	Total   string   `json:"total,omitempty"`
	Address string   `json:"address,omitempty"`
	Items   []string `json:"items"`
}

func financialPrompt(products []models.Product, entries []models.LedgerEntry, sales []models.Sale) string {
	snaps := make([]productSnapshot, 0, len(products))
	for _, p := range products {
		snaps = append(snaps, productSnapshot{Name: p.Name, Stock: p.Stock, MinStock: p.MinStock, Sell: money.Cents(p.SellPriceCents).String()})
	}
	ledger := make([]entrySnapshot, 0, len(entries))
	for _, e := range entries {
		ledger = append(ledger, entrySnapshot{
			Description: e.Description,
			Type:        string(e.Type),
			Amount:      money.Cents(e.AmountCents).String(),
			Category:    e.Category,
			Date:        e.OccurredAt.Format("2006-01-02"),
		})
	}

	var b strings.Builder
	b.WriteString("Analyze the following data from a gas and water distributor.\n")
	fmt.Fprintf(&b, "Products: %s\n", mustJSON(snaps))
	fmt.Fprintf(&b, "Recent ledger entries: %s\n", mustJSON(ledger))
	fmt.Fprintf(&b, "Recent sales: %s\n", mustJSON(saleSnapshots(sales, false)))
	b.WriteString("Provide:\n")
	b.WriteString("1. A quick read on financial health (approximate profitability).\n")
	b.WriteString("2. The 3 most critical products in terms of stock.\n")
	b.WriteString("3. One strategic suggestion to increase sales this week.\n")
	b.WriteString("Answer in Brazilian Portuguese, concise and professional.")
	return b.String()
}

func projectionPrompt(customer *models.Customer, sales []models.Sale) string {
	var b strings.Builder
	b.WriteString("Analyze this customer's purchase history.\n")
	fmt.Fprintf(&b, "Customer: %s\n", customer.Name)
	fmt.Fprintf(&b, "Purchases: %d\n", customer.PurchaseCount)
	fmt.Fprintf(&b, "Total spent: R$ %s\n", money.Cents(customer.TotalSpentCents).String())
	if customer.AverageIntervalDays != nil {
		fmt.Fprintf(&b, "Average days between purchases: %.1f\n", *customer.AverageIntervalDays)
	}
	fmt.Fprintf(&b, "Recent history: %s\n", mustJSON(saleSnapshots(sales, false)))
	b.WriteString("Gas usually lasts 30 to 45 days and water 7 to 15 days. Based on frequency and items:\n")
	b.WriteString("1. Project the date of the next purchase.\n")
	b.WriteString("2. Suggest which product to offer on the next contact.\n")
	b.WriteString("3. Write a short personalized WhatsApp reminder.\n")
	b.WriteString("Be brief. Answer in Brazilian Portuguese.")
	return b.String()
}

func routePrompt(sales []models.Sale) string {
	var b strings.Builder
	b.WriteString("You are a logistics specialist. Optimize the delivery sequence for these orders:\n")
	b.WriteString(mustJSON(saleSnapshots(sales, true)))
	b.WriteString("\nThe route starts at the central depot.\n")
	b.WriteString("1. Order the deliveries to minimize travel time.\n")
	b.WriteString("2. Briefly explain the order (for example grouping by neighborhood).\n")
	b.WriteString("Answer in Brazilian Portuguese.")
	return b.String()
}

func saleSnapshots(sales []models.Sale, forRoute bool) []saleSnapshot {
	out := make([]saleSnapshot, 0, len(sales))
	for _, s := range sales {
		snap := saleSnapshot{Items: make([]string, 0, len(s.Items))}
		for _, item := range s.Items {
			snap.Items = append(snap.Items, fmt.Sprintf("%dx %s", item.Quantity, item.ProductName))
		}
		if forRoute {
			snap.ID = s.ID.String()
			if s.CustomerAddress != nil {
				snap.Address = *s.CustomerAddress
			}
		} else {
			snap.Date = s.CreatedAt.Format("2006-01-02")
			snap.Total = money.Cents(s.TotalCents).String()
		}
		out = append(out, snap)
	}
	return out
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
