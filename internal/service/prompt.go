package service

import (
	"fmt"
	"strings"

	"github.com/asmr-studio/creator-studio/internal/model"
)

// SystemInstruction defines the assistant persona and the mandatory plan layout.
const SystemInstruction = `Sei un assistente AI specializzato nella creazione di contenuti ASMR (Autonomous Sensory Meridian Response) per YouTube. Il tuo obiettivo è aiutare i creator a pianificare, strutturare e ottimizzare video ASMR di alta qualità.

## Competenze Principali

### Conoscenza ASMR
- Comprendi i trigger ASMR più efficaci: whispering, tapping, scratching, brushing, page turning, personal attention, roleplay
- Conosci le diverse categorie: sleep aid, relaxation, study companion, tingles
- Sai quali suoni e tecniche funzionano meglio per diversi pubblici

### Pianificazione Video
Quando un utente chiede aiuto per un video, fornisci:

1. **Concept e Struttura**
   - Titolo ottimizzato per SEO (include parole chiave: ASMR, trigger specifici, "no talking"/"soft spoken", durata)
   - Scaletta temporale dettagliata (intro, corpo principale, outro)
   - Sequenza dei trigger con timing suggerito

2. **Aspetti Tecnici**
   - Suggerimenti per setup audio (microfoni binaurali, distanza, ambiente)
   - Consigli su illuminazione e inquadratura
   - Raccomandazioni per ridurre rumori indesiderati

3. **Script e Dialoghi**
   - Per video con parlato: scrivi script in tono sussurrato, calmo, rassicurante
   - Usa frasi semplici, pausate, ripetitive
   - Evita contenuti stimolanti o controversi

4. **Ottimizzazione YouTube**
   - Descrizione video con timestamp per ogni trigger
   - Tag rilevanti
   - Miniatura accattivante (suggerisci elementi visivi)
   - Note sulla lunghezza ideale (20-60+ minuti per sleep aids)

## Stile di Comunicazione

- Usa un tono calmo, supportivo e creativo
- Fornisci spiegazioni chiare ma concise
- Offri sempre 2-3 varianti o alternative quando suggerisci idee
- Sii specifico nei dettagli tecnici quando richiesto

## Formato delle Risposte

Quando generi un piano video, strutturalo TASSATIVAMENTE così usando Markdown:
- 🎬 **Titolo e concept**
- ⏱️ **Durata totale suggerita**
- 📋 **Scaletta con timing**
- 🎙️ **Note tecniche audio/video**
- 📝 **Script (se applicabile)**
- 🔍 **SEO: descrizione, tag, timestamp**

Rispondi sempre in lingua Italiana.`

// Placeholders used when optional plan fields are empty.
const (
	DefaultDuration    = "Standard per la categoria"
	DefaultPreferences = "Nessuna"
)

// Fixed texts shown in the conversation.
const (
	PlanFallback  = "Mi dispiace, non sono riuscito a generare il piano. Riprova."
	ChatFallback  = "Errore nella risposta."
	PlanApology   = "Si è verificato un errore durante la generazione del piano. Per favore riprova."
	VideoApology  = "Si è verificato un errore durante la generazione del video. Assicurati di aver selezionato un progetto con fatturazione abilitata."
	ChatApology   = "Si è verificato un errore durante la risposta. Per favore riprova."
	videoCaption  = "Ecco un'anteprima visiva generata con Veo per il tuo concept \"%s\"."
	planUserTurn  = "Genera un piano per un video ASMR: %s - %s"
	videoUserTurn = "Genera un'anteprima video per: %s - %s"
)

// Video job shape.
const (
	VideoCount       = 1
	VideoResolution  = "1080p"
	VideoAspectRatio = "16:9"
)

// BuildPlanPrompt renders the plan request prompt.
func BuildPlanPrompt(req model.PlanRequest) string {
	duration := strings.TrimSpace(req.Duration)
	if duration == "" {
		duration = DefaultDuration
	}
	preferences := strings.TrimSpace(req.Preferences)
	if preferences == "" {
		preferences = DefaultPreferences
	}

	var b strings.Builder
	b.WriteString("Vorrei creare un video ASMR.\n")
	fmt.Fprintf(&b, "Categoria: %s\n", req.Category)
	fmt.Fprintf(&b, "Idea principale/Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Durata desiderata: %s\n", duration)
	fmt.Fprintf(&b, "Note aggiuntive: %s\n", preferences)
	b.WriteString("\nPer favore crea un piano dettagliato seguendo il formato richiesto.")
	return b.String()
}

// BuildVideoPrompt renders the cinematic visual prompt.
func BuildVideoPrompt(topic string, category model.Category) string {
	return fmt.Sprintf("Cinematic 4k video, ASMR atmosphere, %s, %s. Soft lighting, highly detailed textures, slow and calming movements, photorealistic, shallow depth of field, relaxation context.", category, topic)
}

// VideoCaption is the model turn accompanying a generated preview.
func VideoCaption(topic string) string {
	return fmt.Sprintf(videoCaption, topic)
}

// PlanUserTurn summarises a plan request as the user's turn.
func PlanUserTurn(req model.PlanRequest) string {
	return fmt.Sprintf(planUserTurn, req.Category, req.Topic)
}

// VideoUserTurn summarises a preview request as the user's turn.
func VideoUserTurn(topic string, category model.Category) string {
	return fmt.Sprintf(videoUserTurn, category, topic)
}
