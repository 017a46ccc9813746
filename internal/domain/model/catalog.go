package model

// Service is a vendor catalog entry (e.g. Telegram, WhatsApp).
type Service struct {
	ID     string `json:"id"`
	Name   string `json:"name"`    // localized (vendor native language)
	NameEn string `json:"name_en"` // default/english
	Active bool   `json:"active"`
}

// Country is a vendor catalog entry; Emoji is optional.
type Country struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	NameEn string `json:"name_en"`
	Emoji  string `json:"emoji,omitempty"`
	Active bool   `json:"active"`
}

// LocalizedName picks the native name for "fa" and falls back to the
// english name everywhere else.
func (s Service) LocalizedName(lang string) string {
	return pickName(lang, s.Name, s.NameEn)
}

func (c Country) LocalizedName(lang string) string {
	return pickName(lang, c.Name, c.NameEn)
}

func pickName(lang, native, en string) string {
	if lang == "fa" && native != "" {
		return native
	}
	if en != "" {
		return en
	}
	return native
}

// ProviderBalance is the vendor panel balance as reported by the vendor.
type ProviderBalance struct {
	Amount   string
	Currency string
}
