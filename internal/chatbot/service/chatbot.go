package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// softLatencyTarget only triggers a log warning when exceeded; slow external
// completions still return their answer.
const softLatencyTarget = 2 * time.Second

const maxMatches = 5

// ChatbotService answers free-text questions about the catalog. It works
// fully offline from the database; an external completion client only
// improves the phrasing of the answer.
type ChatbotService struct {
	medicineRepo *invrepo.MedicineRepository
	completion   *CompletionClient
	logger       *logger.Logger
}

// NewChatbotService creates a new chatbot service. completion may be nil.
func NewChatbotService(medicineRepo *invrepo.MedicineRepository, completion *CompletionClient, log *logger.Logger) *ChatbotService {
	return &ChatbotService{
		medicineRepo: medicineRepo,
		completion:   completion,
		logger:       log,
	}
}

// ChatResponse is the chatbot answer with the data it was based on
type ChatResponse struct {
	Reply        string              `json:"reply"`
	Source       string              `json:"source"`
	Matches      []*invrepo.Medicine `json:"matches"`
	Alternatives []*invrepo.Medicine `json:"alternatives"`
}

// Respond answers a catalog question. The search tries the full phrase
// first and falls back to per-word matching; same-category alternatives for
// the best match ride along either way.
func (s *ChatbotService) Respond(ctx context.Context, query string) (*ChatResponse, error) {
	start := time.Now()

	matches, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}

	alternatives, err := s.alternativesFor(ctx, matches)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to look up alternatives")
		alternatives = nil
	}

	response := &ChatResponse{
		Matches:      matches,
		Alternatives: alternatives,
	}

	if s.completion == nil {
		response.Reply = s.templatedReply(ctx, query, matches, alternatives)
		response.Source = "template"
	} else {
		reply, err := s.completion.Complete(ctx, buildSystemPrompt(matches, alternatives), query)
		if err != nil {
			s.logger.Warn().Err(err).Msg("completion api failed, falling back to template")
			response.Reply = s.templatedReply(ctx, query, matches, alternatives)
			response.Source = "template"
		} else {
			response.Reply = reply
			response.Source = "assistant"
		}
	}

	if elapsed := time.Since(start); elapsed > softLatencyTarget {
		s.logger.Warn().
			Dur("elapsed", elapsed).
			Str("query", query).
			Msg("chatbot response exceeded latency target")
	}

	return response, nil
}

// search matches the full phrase across name, generic name, brand, category
// and description, then retries word by word when nothing matched.
func (s *ChatbotService) search(ctx context.Context, query string) ([]*invrepo.Medicine, error) {
	matches, _, err := s.medicineRepo.List(ctx, invrepo.MedicineFilter{
		Search:  query,
		Page:    1,
		PerPage: maxMatches,
	})
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}

	seen := map[string]bool{}
	for _, word := range strings.Fields(query) {
		if len(word) < 3 {
			continue
		}

		wordMatches, _, err := s.medicineRepo.List(ctx, invrepo.MedicineFilter{
			Search:  word,
			Page:    1,
			PerPage: maxMatches,
		})
		if err != nil {
			return nil, err
		}

		for _, m := range wordMatches {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			matches = append(matches, m)
			if len(matches) == maxMatches {
				return matches, nil
			}
		}
	}

	return matches, nil
}

// alternativesFor lists other medicines in the best match's category
func (s *ChatbotService) alternativesFor(ctx context.Context, matches []*invrepo.Medicine) ([]*invrepo.Medicine, error) {
	if len(matches) == 0 || matches[0].Category == "" {
		return nil, nil
	}

	candidates, _, err := s.medicineRepo.List(ctx, invrepo.MedicineFilter{
		Category: matches[0].Category,
		Page:     1,
		PerPage:  maxMatches + 1,
	})
	if err != nil {
		return nil, err
	}

	var alternatives []*invrepo.Medicine
	for _, c := range candidates {
		if c.ID == matches[0].ID {
			continue
		}
		alternatives = append(alternatives, c)
		if len(alternatives) == maxMatches {
			break
		}
	}

	return alternatives, nil
}

func (s *ChatbotService) templatedReply(ctx context.Context, query string, matches, alternatives []*invrepo.Medicine) string {
	if len(matches) == 0 {
		reply := fmt.Sprintf("I couldn't find any medicines matching %q.", query)
		if categories, err := s.medicineRepo.Categories(ctx); err == nil && len(categories) > 0 {
			if len(categories) > 5 {
				categories = categories[:5]
			}
			reply += " Try searching by category, for example: " + strings.Join(categories, ", ") + "."
		}
		return reply
	}

	m := matches[0]
	var b strings.Builder
	fmt.Fprintf(&b, "%s", m.Name)
	if m.GenericName != "" && m.GenericName != m.Name {
		fmt.Fprintf(&b, " (%s)", m.GenericName)
	}
	fmt.Fprintf(&b, ": %d %s in stock at %s each.", m.Quantity, m.Unit, m.UnitPrice.StringFixed(2))

	if m.Quantity == 0 {
		b.WriteString(" Currently out of stock.")
	} else if m.IsLowStock() {
		b.WriteString(" Stock is running low.")
	}
	if m.IsExpired(time.Now()) {
		b.WriteString(" Note: this batch is expired.")
	}

	if len(alternatives) > 0 {
		names := make([]string, 0, len(alternatives))
		for _, a := range alternatives {
			names = append(names, a.Name)
		}
		fmt.Fprintf(&b, " Alternatives in the %s category: %s.", m.Category, strings.Join(names, ", "))
	}

	return b.String()
}

// buildSystemPrompt embeds the search results so the completion model only
// rephrases catalog facts instead of inventing them.
func buildSystemPrompt(matches, alternatives []*invrepo.Medicine) string {
	var b strings.Builder
	b.WriteString("You are a pharmacy inventory assistant. Answer briefly using only the catalog data below. ")
	b.WriteString("If the data does not answer the question, say so.\n\nMatching medicines:\n")

	if len(matches) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s (generic: %s, category: %s): %d %s in stock, %s each, expires %s\n",
			m.Name, m.GenericName, m.Category, m.Quantity, m.Unit,
			m.UnitPrice.StringFixed(2), m.ExpiryDate.Format("2006-01-02"))
	}

	if len(alternatives) > 0 {
		b.WriteString("\nSame-category alternatives:\n")
		for _, a := range alternatives {
			fmt.Fprintf(&b, "- %s: %d %s in stock\n", a.Name, a.Quantity, a.Unit)
		}
	}

	return b.String()
}
