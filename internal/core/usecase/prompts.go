package usecase

import (
	"fmt"
	"strings"
)

const (
	buildingTypesTextLimit = 80000

	regulationSystemPrompt = "Ești un expert în urbanism și în reglementările de construcții din România. " +
		"Extragi informații exacte din documentele primite și răspunzi exclusiv cu JSON valid."
)

func buildBuildingTypesPrompt(zoneCode, regulationText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Regulamentul de urbanism de mai jos se aplică zonei %q.\n\n", zoneCode)
	b.WriteString("Regulament:\n")
	b.WriteString(truncateRunes(regulationText, buildingTypesTextLimit))
	b.WriteString("\n\n")
	b.WriteString("Listează toate tipurile de construcții sau utilizări permise în această zonă.\n")
	b.WriteString("Răspunde doar cu un array JSON de string-uri, de exemplu:\n")
	b.WriteString(`["locuințe individuale", "locuințe colective", "birouri", "comerț cu amănuntul sub 250mp", "servicii"]`)
	b.WriteString("\n\nReguli:\n")
	b.WriteString("- fără text în afara array-ului\n")
	b.WriteString("- câte un tip de construcție permis pe element\n")
	b.WriteString("- dacă regulamentul nu conține astfel de informații, răspunde cu []\n")
	return b.String()
}

func buildBuildingDetailsPrompt(zoneCode, buildingType, regulationContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fragmentele de mai jos provin din regulamentul de urbanism al zonei %q.\n\n", zoneCode)
	b.WriteString("Regulament:\n")
	b.WriteString(regulationContext)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Pentru construcțiile de tip %q din zona %s extrage:\n", buildingType, zoneCode)
	b.WriteString("1. POT (procentul de ocupare a terenului)\n")
	b.WriteString("2. CUT (coeficientul de utilizare a terenului)\n")
	b.WriteString("3. suprafața minimă a parcelei construibile\n")
	b.WriteString("4. distanța minimă față de limitele proprietății\n")
	b.WriteString("5. deschiderea minimă la stradă\n\n")
	b.WriteString("Exemple de formulări din regulamente:\n")
	b.WriteString("- L1e: POT maxim = 30%, CUT maxim pentru înălțimi P = 0,1 mp ADC/mp teren\n")
	b.WriteString("- L2a: POT maxim = 45%, CUT maxim pentru înălțimi P+1 = 0,9 mp ADC/mp teren\n\n")
	fmt.Fprintf(&b, "Dacă o valoare lipsește din regulament, folosește %q.\n", "??")
	b.WriteString("Răspunde doar cu un obiect JSON cu exact aceste chei:\n")
	b.WriteString(`{"pot": "40%", "cut": "0.8", "suprafataMinima": "150mp", "distantaLimite": "3m", "deschidereStrada": "12m"}`)
	b.WriteString("\n")
	return b.String()
}

// stripCodeFence removes a leading ```json or ``` fence and the closing fence.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
