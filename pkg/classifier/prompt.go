package classifier

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the classifier as a strict judge.
const SystemPrompt = `Tu es le jury culinaire de "The Glitch Kitchen". Tu compares une recette reconstituée par une brigade à la recette de référence. Tu réponds uniquement avec un objet JSON valide, sans texte autour.`

// BuildPrompt renders every field pair of req and the expected answer format.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Pour chaque étape et chaque champ (ingredient, technique, tool), classe la proposition de la brigade par rapport à la référence avec exactement un label :\n")
	b.WriteString("- EXACT : même sens, éventuellement formulé autrement\n")
	b.WriteString("- PROCHE : très proche, détail manquant ou légèrement imprécis\n")
	b.WriteString("- PARTIEL : une partie seulement est correcte\n")
	b.WriteString("- INDIRECT : lien lointain ou implicite\n")
	b.WriteString("- AUCUN : faux, hors sujet ou vide\n\n")

	for _, p := range req.Steps {
		fmt.Fprintf(&b, "Étape %d\n", p.Step)
		writePair(&b, "ingredient", p.Reference.Ingredient, p.Candidate.Ingredient)
		writePair(&b, "technique", p.Reference.Technique, p.Candidate.Technique)
		writePair(&b, "tool", p.Reference.Tool, p.Candidate.Tool)
		b.WriteByte('\n')
	}

	b.WriteString("Ajoute pour chaque étape un court feedback en français qui ne révèle pas la référence, puis un feedback global.\n")
	b.WriteString("Format de réponse :\n")
	b.WriteString(`{"steps":[{"step":1,"ingredient":"EXACT","technique":"PROCHE","tool":"AUCUN","feedback":"..."}],"global_feedback":"..."}`)
	b.WriteByte('\n')
	return b.String()
}

func writePair(b *strings.Builder, field, reference, candidate string) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		candidate = "(vide)"
	}
	fmt.Fprintf(b, "  %s : référence=%q proposition=%q\n", field, reference, candidate)
}
