// Package i18n holds the translation catalogs and lookup. Guests always
// receive short, same-language text; internal identifiers are never
// exposed.
package i18n

import "fmt"

// DefaultLang is used when a user has no stored preference or the
// preferred catalog lacks a key.
const DefaultLang = "en"

// SupportedLangs lists the catalogs shipped with the bot.
var SupportedLangs = []string{"en", "es"}

var catalogs = map[string]map[string]string{
	"en": {
		"welcome":              "Hi! Send me a message and I will pass it to the operator.",
		"blocked_notice":       "You are blocked and your messages are not delivered.",
		"blocked_with_reason":  "You have been blocked. Reason: %s",
		"rate_limited":         "Too many messages. Try again in %d seconds.",
		"error_generic":        "An error occurred. Please try again later.",
		"lang_changed":         "Language updated.",
		"lang_pick":            "Choose your language:",
		"appeal_not_blocked":   "You are not blocked, no appeal is needed.",
		"appeal_submitted":     "Your appeal has been submitted. You will be notified of the decision.",
		"appeal_accepted":      "Your appeal was accepted. You can message the operator again.",
		"appeal_rejected":      "Your appeal was rejected.",
		"edited_not_relayed":   "Edited messages are not relayed. Send a new message instead.",
		"admin_cannot_find_user":     "Cannot find that user.",
		"admin_relay_not_found":      "This message is not linked to any relay.",
		"admin_cannot_find_sender":   "Cannot find the sender of this relay.",
		"admin_relay_data_not_found": "Relay data not found.",
		"admin_invalid_user_id":      "Invalid user id: expected a number.",
		"admin_blocked":              "User %s has been blocked.",
		"admin_unblocked":            "User %s has been unblocked.",
		"admin_trusted":              "User %s is now trusted and bypasses moderation.",
		"admin_untrusted":            "User %s trust has been reset.",
		"admin_appeal_accepted":      "Appeal accepted. User %s has been unblocked.",
		"admin_appeal_rejected":      "Appeal rejected for user %s.",
	},
	"es": {
		"welcome":             "¡Hola! Envíame un mensaje y se lo pasaré al operador.",
		"blocked_notice":      "Estás bloqueado y tus mensajes no se entregan.",
		"blocked_with_reason": "Has sido bloqueado. Motivo: %s",
		"rate_limited":        "Demasiados mensajes. Inténtalo de nuevo en %d segundos.",
		"error_generic":       "Ocurrió un error. Inténtalo de nuevo más tarde.",
		"lang_changed":        "Idioma actualizado.",
		"lang_pick":           "Elige tu idioma:",
		"appeal_not_blocked":  "No estás bloqueado, no necesitas apelar.",
		"appeal_submitted":    "Tu apelación ha sido enviada. Se te notificará la decisión.",
		"appeal_accepted":     "Tu apelación fue aceptada. Puedes volver a escribir al operador.",
		"appeal_rejected":     "Tu apelación fue rechazada.",
		"edited_not_relayed":  "Los mensajes editados no se reenvían. Envía uno nuevo.",
	},
}

// T looks up a key in the catalog for lang, falling back to the default
// catalog, formatting args into the template when present.
func T(lang, key string, args ...interface{}) string {
	catalog, ok := catalogs[lang]
	if !ok {
		catalog = catalogs[DefaultLang]
	}
	tmpl, ok := catalog[key]
	if !ok {
		tmpl, ok = catalogs[DefaultLang][key]
		if !ok {
			return key
		}
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// IsSupported reports whether a language code has a catalog.
func IsSupported(lang string) bool {
	_, ok := catalogs[lang]
	return ok
}
