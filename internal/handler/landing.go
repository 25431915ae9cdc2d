package handler

import (
	"net/http"
)

// ConfigurationMissingMessage is shown when the server started without a credential.
const ConfigurationMissingMessage = "L'applicazione richiede una chiave API configurata nell'ambiente per funzionare. (API_KEY mancante)"

// ConfigurationMissing answers every studio route when no credential was configured at startup.
func ConfigurationMissing(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "configuration_missing", ConfigurationMissingMessage)
}
