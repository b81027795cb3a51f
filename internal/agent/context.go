// Package agent implements the assistant's tool-calling loop.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobpilot/assistant-api/internal/llm"
	"github.com/jobpilot/assistant-api/internal/model"
	"github.com/jobpilot/assistant-api/internal/store"
)

const basePrompt = `Tu es un assistant pour une application de gestion de candidatures.
Tu aides l'utilisateur à gérer ses contacts, entreprises et candidatures.

Tu peux:
- Ajouter et lister des contacts (prénom, nom, email, LinkedIn)
- Ajouter et lister des entreprises (nom, description, site web, LinkedIn)
- Ajouter et lister des candidatures (titre du poste, entreprise, description, URL, statut, notes)

Pour les candidatures, si l'utilisateur mentionne une entreprise qui n'existe pas, elle sera créée automatiquement.

Sois concis et utile. Réponds dans la langue de l'utilisateur.
Quand tu crées quelque chose, confirme les informations ajoutées.`

// ContextAssembler builds the model-facing message sequence for one
// turn: system instruction (base prompt + profile dossier), persisted
// history, and the new user message.
type ContextAssembler struct {
	store *store.Store
}

// NewContextAssembler creates a context assembler.
func NewContextAssembler(st *store.Store) *ContextAssembler {
	return &ContextAssembler{store: st}
}

// Build assembles the ordered messages for one turn. The dossier is
// recomputed on every call so profile edits made between turns are
// always reflected.
func (a *ContextAssembler) Build(ctx context.Context, userID string, history []model.Message, userMessage string) ([]llm.ChatMessage, error) {
	dossier, err := a.dossier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build dossier: %w", err)
	}

	msgs := make([]llm.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, llm.ChatMessage{
		Role:    llm.RoleSystem,
		Content: basePrompt + dossier,
	})
	for _, m := range history {
		msgs = append(msgs, llm.ChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	msgs = append(msgs, llm.ChatMessage{
		Role:    llm.RoleUser,
		Content: userMessage,
	})
	return msgs, nil
}

// dossier renders the user's experiences and skills as a delimited
// text block. A user with no experiences gets an empty string, not an
// empty block.
func (a *ContextAssembler) dossier(ctx context.Context, userID string) (string, error) {
	experiences, err := a.store.ListExperiences(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(experiences) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("\n\n--- CV DE L'UTILISATEUR ---\n")

	seen := make(map[string]bool)
	var allSkills []string

	for _, exp := range experiences {
		endDate := exp.EndDate
		if exp.Current {
			endDate = "Présent"
		}
		fmt.Fprintf(&b, "\n**%s** chez %s", exp.Title, exp.Company)
		fmt.Fprintf(&b, "\n%s - %s", exp.StartDate, endDate)
		if exp.Location != "" {
			fmt.Fprintf(&b, " | %s", exp.Location)
		}
		if exp.Description != "" {
			fmt.Fprintf(&b, "\n%s", exp.Description)
		}
		if len(exp.Skills) > 0 {
			fmt.Fprintf(&b, "\nCompétences: %s", strings.Join(exp.Skills, ", "))
		}
		b.WriteString("\n")

		for _, s := range exp.Skills {
			if !seen[s] {
				seen[s] = true
				allSkills = append(allSkills, s)
			}
		}
	}

	if len(allSkills) > 0 {
		fmt.Fprintf(&b, "\n**Toutes les compétences:** %s", strings.Join(allSkills, ", "))
	}

	b.WriteString("\n--- FIN DU CV ---\n")
	b.WriteString("\nUtilise ces informations pour aider l'utilisateur avec ses candidatures, ")
	b.WriteString("par exemple pour identifier les compétences pertinentes pour une offre.")

	return b.String(), nil
}
