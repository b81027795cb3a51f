package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobpilot/assistant-api/internal/store"
)

type addContactArgs struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	LinkedIn  string `json:"linkedin"`
}

func newAddContactTool(st *store.Store, userID string) *Tool {
	return &Tool{
		Name: "add_contact",
		Description: "Ajoute un nouveau contact dans la base de données. " +
			"Utilise cet outil quand l'utilisateur veut ajouter ou créer un contact.",
		Parameters: schema(map[string]any{
			"firstName": prop("string", "Prénom du contact"),
			"lastName":  prop("string", "Nom de famille du contact"),
			"email":     prop("string", "Adresse email du contact"),
			"linkedin":  prop("string", "URL du profil LinkedIn du contact"),
		}),
		Execute: func(ctx context.Context, args map[string]any) string {
			var in addContactArgs
			if err := decodeArgs(args, &in); err != nil {
				return failure("Arguments invalides: %v", err)
			}

			contact, err := st.CreateContact(ctx, userID, store.NewContact{
				FirstName: in.FirstName,
				LastName:  in.LastName,
				Email:     in.Email,
				LinkedIn:  in.LinkedIn,
			})
			if err != nil {
				return failure("Erreur lors de la création du contact: %v", err)
			}

			name := strings.TrimSpace(in.FirstName + " " + in.LastName)
			return success("Contact créé avec succès: "+name, map[string]any{
				"contact": map[string]any{
					"id":        contact.ID,
					"firstName": contact.FirstName,
					"lastName":  contact.LastName,
					"email":     contact.Email,
				},
			})
		},
	}
}

func newListContactsTool(st *store.Store, userID string) *Tool {
	return &Tool{
		Name: "list_contacts",
		Description: "Liste tous les contacts de l'utilisateur. " +
			"Utilise cet outil quand l'utilisateur veut voir ses contacts.",
		Parameters: schema(map[string]any{}),
		Execute: func(ctx context.Context, args map[string]any) string {
			contacts, err := st.ListContacts(ctx, userID)
			if err != nil {
				return failure("Erreur: %v", err)
			}

			if len(contacts) == 0 {
				return success("Aucun contact trouvé.", map[string]any{
					"contacts": []any{},
				})
			}

			list := make([]map[string]any, 0, len(contacts))
			for _, c := range contacts {
				list = append(list, map[string]any{
					"id":        c.ID,
					"firstName": c.FirstName,
					"lastName":  c.LastName,
					"email":     c.Email,
				})
			}
			return success(fmt.Sprintf("%d contact(s) trouvé(s).", len(contacts)), map[string]any{
				"contacts": list,
			})
		},
	}
}
