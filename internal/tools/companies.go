package tools

import (
	"context"
	"fmt"

	"github.com/jobpilot/assistant-api/internal/store"
)

type addCompanyArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	LinkedIn    string `json:"linkedin"`
}

func newAddCompanyTool(st *store.Store, userID string) *Tool {
	return &Tool{
		Name: "add_company",
		Description: "Ajoute une nouvelle entreprise dans la base de données. " +
			"Utilise cet outil quand l'utilisateur veut ajouter ou créer une entreprise.",
		Parameters: schema(map[string]any{
			"name":        prop("string", "Nom de l'entreprise"),
			"description": prop("string", "Description de l'entreprise"),
			"website":     prop("string", "Site web de l'entreprise"),
			"linkedin":    prop("string", "Page LinkedIn de l'entreprise"),
		}, "name"),
		Execute: func(ctx context.Context, args map[string]any) string {
			var in addCompanyArgs
			if err := decodeArgs(args, &in); err != nil {
				return failure("Arguments invalides: %v", err)
			}
			if in.Name == "" {
				return failure("Le nom de l'entreprise est requis.")
			}

			company, err := st.CreateCompany(ctx, userID, store.NewCompany{
				Name:        in.Name,
				Description: in.Description,
				Website:     in.Website,
				LinkedIn:    in.LinkedIn,
			})
			if err != nil {
				return failure("Erreur lors de la création de l'entreprise: %v", err)
			}

			return success(fmt.Sprintf("Entreprise %q créée avec succès", in.Name), map[string]any{
				"company": map[string]any{
					"id":      company.ID,
					"name":    company.Name,
					"website": company.Website,
				},
			})
		},
	}
}

func newListCompaniesTool(st *store.Store, userID string) *Tool {
	return &Tool{
		Name: "list_companies",
		Description: "Liste toutes les entreprises de l'utilisateur. " +
			"Utilise cet outil quand l'utilisateur veut voir ses entreprises.",
		Parameters: schema(map[string]any{}),
		Execute: func(ctx context.Context, args map[string]any) string {
			companies, err := st.ListCompanies(ctx, userID)
			if err != nil {
				return failure("Erreur: %v", err)
			}

			if len(companies) == 0 {
				return success("Aucune entreprise trouvée.", map[string]any{
					"companies": []any{},
				})
			}

			list := make([]map[string]any, 0, len(companies))
			for _, c := range companies {
				list = append(list, map[string]any{
					"id":      c.ID,
					"name":    c.Name,
					"website": c.Website,
				})
			}
			return success(fmt.Sprintf("%d entreprise(s) trouvée(s).", len(companies)), map[string]any{
				"companies": list,
			})
		},
	}
}
