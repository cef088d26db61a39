package receipt

import (
	"errors"
	"fmt"
	"strings"
)

// Theme is the appearance preference
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// ErrInvalidTheme is returned when saving settings with an unknown theme
var ErrInvalidTheme = errors.New("theme must be one of system, light, dark")

// ErrUnknownCurrency is returned when a currency code is not in the table
var ErrUnknownCurrency = errors.New("unknown currency code")

// Settings is the process-wide configuration read by every view. It is
// passed explicitly to whatever needs it rather than held globally.
type Settings struct {
	CurrencySymbol string `json:"currencySymbol"`
	CurrencyCode   string `json:"currencyCode"`
	Theme          Theme  `json:"theme"`
}

// DefaultSettings is used until the user saves their own
func DefaultSettings() Settings {
	return Settings{
		CurrencySymbol: "₹",
		CurrencyCode:   "INR",
		Theme:          ThemeSystem,
	}
}

// Validate checks the theme is one of the known values
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTheme, s.Theme)
	}
}

// WithCurrency returns a copy of s switched to the given ISO code
func (s Settings) WithCurrency(code string) (Settings, error) {
	c, ok := LookupCurrency(code)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	s.CurrencyCode = c.Code
	s.CurrencySymbol = c.Symbol
	return s, nil
}

// Currency is an entry of the supported currency table
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// LookupCurrency finds a currency by ISO code, case-insensitively
func LookupCurrency(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// Currencies returns the supported currency table
func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

var currencies = []Currency{
	{"INR", "₹", "Indian Rupee"},
	{"USD", "$", "US Dollar"},
	{"EUR", "€", "Euro"},
	{"GBP", "£", "British Pound"},
	{"JPY", "¥", "Japanese Yen"},
	{"AUD", "A$", "Australian Dollar"},
	{"CAD", "C$", "Canadian Dollar"},
	{"CHF", "CHF", "Swiss Franc"},
	{"CNY", "¥", "Chinese Yuan"},
	{"AED", "د.إ", "UAE Dirham"},
	{"AFN", "؋", "Afghan Afghani"},
	{"ALL", "L", "Albanian Lek"},
	{"AMD", "֏", "Armenian Dram"},
	{"ANG", "ƒ", "Antillean Guilder"},
	{"AOA", "Kz", "Angolan Kwanza"},
	{"ARS", "$", "Argentine Peso"},
	{"AWG", "ƒ", "Aruban Florin"},
	{"AZN", "₼", "Azerbaijani Manat"},
	{"BAM", "KM", "Bosnia-Herzegovina Mark"},
	{"BBD", "$", "Barbadian Dollar"},
	{"BDT", "৳", "Bangladeshi Taka"},
	{"BGN", "лв", "Bulgarian Lev"},
	{"BHD", ".د.ب", "Bahraini Dinar"},
	{"BIF", "FBu", "Burundian Franc"},
	{"BMD", "$", "Bermudan Dollar"},
	{"BND", "$", "Brunei Dollar"},
	{"BOB", "$b", "Bolivian Boliviano"},
	{"BRL", "R$", "Brazilian Real"},
	{"BSD", "$", "Bahamian Dollar"},
	{"BTN", "Nu.", "Bhutanese Ngultrum"},
	{"BWP", "P", "Botswanan Pula"},
	{"BYN", "Br", "Belarusian Ruble"},
	{"BZD", "BZ$", "Belize Dollar"},
	{"CLP", "$", "Chilean Peso"},
	{"COP", "$", "Colombian Peso"},
	{"CRC", "₡", "Costa Rican Colón"},
	{"CUP", "₱", "Cuban Peso"},
	{"CZK", "Kč", "Czech Koruna"},
	{"DKK", "kr", "Danish Krone"},
	{"DOP", "RD$", "Dominican Peso"},
	{"DZD", "دج", "Algerian Dinar"},
	{"EGP", "£", "Egyptian Pound"},
	{"ETB", "Br", "Ethiopian Birr"},
	{"FJD", "$", "Fijian Dollar"},
	{"GEL", "₾", "Georgian Lari"},
	{"GHS", "GH₵", "Ghanaian Cedi"},
	{"GMD", "D", "Gambian Dalasi"},
	{"GNF", "FG", "Guinean Franc"},
	{"GTQ", "Q", "Guatemalan Quetzal"},
	{"HKD", "HK$", "Hong Kong Dollar"},
	{"HNL", "L", "Honduran Lempira"},
	{"HRK", "kn", "Croatian Kuna"},
	{"HTG", "G", "Haitian Gourde"},
	{"HUF", "Ft", "Hungarian Forint"},
	{"IDR", "Rp", "Indonesian Rupiah"},
	{"ILS", "₪", "Israeli New Shekel"},
	{"IQD", "ع.د", "Iraqi Dinar"},
	{"IRR", "﷼", "Iranian Rial"},
	{"ISK", "kr", "Icelandic Króna"},
	{"JMD", "J$", "Jamaican Dollar"},
	{"JOD", "JD", "Jordanian Dinar"},
	{"KES", "KSh", "Kenyan Shilling"},
	{"KGS", "лв", "Kyrgystani Som"},
	{"KHR", "៛", "Cambodian Riel"},
	{"KWD", "KD", "Kuwaiti Dinar"},
	{"KZT", "лв", "Kazakhstani Tenge"},
	{"LBP", "£", "Lebanese Pound"},
	{"LKR", "₨", "Sri Lankan Rupee"},
	{"MAD", "DH", "Moroccan Dirham"},
	{"MYR", "RM", "Malaysian Ringgit"},
	{"NZD", "NZ$", "New Zealand Dollar"},
	{"PHP", "₱", "Philippine Peso"},
	{"PKR", "₨", "Pakistani Rupee"},
	{"RUB", "₽", "Russian Ruble"},
	{"SAR", "SR", "Saudi Riyal"},
	{"SGD", "S$", "Singapore Dollar"},
	{"THB", "฿", "Thai Baht"},
	{"TRY", "₺", "Turkish Lira"},
	{"VND", "₫", "Vietnamese Dong"},
	{"ZAR", "R", "South African Rand"},
}
