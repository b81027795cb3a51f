package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jobpilot/assistant-api/internal/model"
	"github.com/jobpilot/assistant-api/internal/store"
)

type addApplicationArgs struct {
	Title       string `json:"title"`
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
	JobURL      string `json:"jobUrl"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

func newAddApplicationTool(st *store.Store, userID string) *Tool {
	return &Tool{
		Name: "add_application",
		Description: "Ajoute une nouvelle candidature/offre d'emploi. " +
			"Utilise cet outil quand l'utilisateur veut ajouter une candidature, " +
			"postuler à une offre, ou tracker une opportunité. " +
			"Si l'entreprise mentionnée n'existe pas encore, elle sera créée automatiquement.",
		Parameters: schema(map[string]any{
			"title":       prop("string", "Titre du poste (ex: Développeur Full Stack)"),
			"companyName": prop("string", "Nom de l'entreprise"),
			"description": prop("string", "Description de l'offre"),
			"jobUrl":      prop("string", "URL de l'offre d'emploi"),
			"status": map[string]any{
				"type":        "string",
				"enum":        []string{"draft", "applied", "interviewing", "offered", "rejected", "accepted"},
				"description": "Statut de la candidature (draft par défaut)",
			},
			"notes": prop("string", "Notes personnelles sur la candidature"),
		}, "title"),
		Execute: func(ctx context.Context, args map[string]any) string {
			var in addApplicationArgs
			if err := decodeArgs(args, &in); err != nil {
				return failure("Arguments invalides: %v", err)
			}
			if in.Title == "" {
				return failure("Le titre du poste est requis.")
			}

			status := model.ApplicationStatus(in.Status)
			if status == "" {
				status = model.StatusDraft
			}
			if !model.ValidStatus(status) {
				return failure("Statut invalide: %q", in.Status)
			}

			// Company name resolves to an existing company by
			// case-insensitive match, or creates one. This upsert is
			// part of the tool's contract, not an error path.
			var companyID string
			if in.CompanyName != "" {
				company, err := st.FindCompanyByName(ctx, userID, in.CompanyName)
				if errors.Is(err, store.ErrNotFound) {
					company, err = st.CreateCompany(ctx, userID, store.NewCompany{Name: in.CompanyName})
				}
				if err != nil {
					return failure("Erreur lors de la résolution de l'entreprise: %v", err)
				}
				companyID = company.ID
			}

			var appliedAt *time.Time
			if status == model.StatusApplied {
				now := time.Now().UTC()
				appliedAt = &now
			}

			app, err := st.CreateApplication(ctx, userID, store.NewJobApplication{
				Title:       in.Title,
				Description: in.Description,
				JobURL:      in.JobURL,
				CompanyID:   companyID,
				Status:      status,
				AppliedAt:   appliedAt,
				Notes:       in.Notes,
			})
			if err != nil {
				return failure("Erreur lors de la création de la candidature: %v", err)
			}

			msg := fmt.Sprintf("Candidature %q créée avec succès", in.Title)
			if in.CompanyName != "" {
				msg = fmt.Sprintf("Candidature %q chez %s créée avec succès", in.Title, in.CompanyName)
			}
			return success(msg, map[string]any{
				"application": map[string]any{
					"id":     app.ID,
					"title":  app.Title,
					"status": app.Status,
				},
			})
		},
	}
}

func newListApplicationsTool(st *store.Store, userID string) *Tool {
	return &Tool{
		Name: "list_applications",
		Description: "Liste toutes les candidatures de l'utilisateur. " +
			"Utilise cet outil quand l'utilisateur veut voir ses candidatures.",
		Parameters: schema(map[string]any{}),
		Execute: func(ctx context.Context, args map[string]any) string {
			apps, err := st.ListApplications(ctx, userID)
			if err != nil {
				return failure("Erreur: %v", err)
			}

			if len(apps) == 0 {
				return success("Aucune candidature trouvée.", map[string]any{
					"applications": []any{},
				})
			}

			list := make([]map[string]any, 0, len(apps))
			for _, a := range apps {
				entry := map[string]any{
					"id":     a.ID,
					"title":  a.Title,
					"status": a.Status,
				}
				if a.CompanyName != "" {
					entry["company"] = a.CompanyName
				}
				list = append(list, entry)
			}
			return success(fmt.Sprintf("%d candidature(s) trouvée(s).", len(apps)), map[string]any{
				"applications": list,
			})
		},
	}
}

type updateApplicationArgs struct {
	ApplicationID string  `json:"applicationId"`
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	JobURL        *string `json:"jobUrl"`
	Status        *string `json:"status"`
	Notes         *string `json:"notes"`
}

func newUpdateApplicationTool(st *store.Store, userID string) *Tool {
	return &Tool{
		Name: "update_application",
		Description: "Met à jour une candidature existante. " +
			"Utilise cet outil quand l'utilisateur veut modifier le statut, le titre, " +
			"ou d'autres informations d'une candidature existante. " +
			"Tu dois d'abord lister les candidatures pour obtenir l'ID.",
		Parameters: schema(map[string]any{
			"applicationId": prop("string", "L'ID de la candidature à modifier (UUID)"),
			"title":         prop("string", "Nouveau titre du poste"),
			"description":   prop("string", "Nouvelle description"),
			"jobUrl":        prop("string", "Nouvelle URL de l'offre"),
			"status": map[string]any{
				"type":        "string",
				"enum":        []string{"draft", "applied", "interviewing", "offered", "rejected", "accepted"},
				"description": "Nouveau statut de la candidature",
			},
			"notes": prop("string", "Nouvelles notes"),
		}, "applicationId"),
		Execute: func(ctx context.Context, args map[string]any) string {
			var in updateApplicationArgs
			if err := decodeArgs(args, &in); err != nil {
				return failure("Arguments invalides: %v", err)
			}
			if in.ApplicationID == "" {
				return failure("L'ID de la candidature est requis.")
			}

			existing, err := st.GetApplication(ctx, userID, in.ApplicationID)
			if errors.Is(err, store.ErrNotFound) {
				return failure("Candidature non trouvée.")
			}
			if err != nil {
				return failure("Erreur lors de la mise à jour: %v", err)
			}

			update := store.UpdateJobApplication{
				Title:       in.Title,
				Description: in.Description,
				JobURL:      in.JobURL,
				Notes:       in.Notes,
			}
			if in.Status != nil {
				status := model.ApplicationStatus(*in.Status)
				if !model.ValidStatus(status) {
					return failure("Statut invalide: %q", *in.Status)
				}
				update.Status = &status
				if status == model.StatusApplied && existing.AppliedAt == nil {
					now := time.Now().UTC()
					update.AppliedAt = &now
				}
			}

			updated, err := st.UpdateApplication(ctx, userID, in.ApplicationID, update)
			if errors.Is(err, store.ErrNotFound) {
				return failure("Candidature non trouvée.")
			}
			if err != nil {
				return failure("Erreur lors de la mise à jour: %v", err)
			}

			return success(fmt.Sprintf("Candidature %q mise à jour avec succès.", updated.Title), map[string]any{
				"application": map[string]any{
					"id":     updated.ID,
					"title":  updated.Title,
					"status": updated.Status,
				},
			})
		},
	}
}
