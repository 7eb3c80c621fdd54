package stt

import "github.com/teslashibe/agrivoice/pkg/language"

// agriculturalPhrases bias recognition toward farming vocabulary.
var agriculturalPhrases = map[string][]string{
	language.Hindi: {
		"फसल", "खेती", "किसान", "बारिश", "मौसम", "सिंचाई", "खाद", "बीज",
		"गेहूं", "धान", "मक्का", "कपास", "गन्ना", "आलू", "टमाटर", "प्याज",
		"कीट", "रोग", "दवा", "स्प्रे", "हार्वेस्ट", "बुआई", "जुताई",
	},
	language.English: {
		"crop", "farming", "farmer", "rain", "weather", "irrigation", "fertilizer", "seed",
		"wheat", "rice", "corn", "cotton", "sugarcane", "potato", "tomato", "onion",
		"pest", "disease", "pesticide", "spray", "harvest", "sowing", "plowing",
	},
	language.Tamil: {
		"பயிர்", "விவசாயம்", "விவசாயி", "மழை", "வானிலை", "நீர்ப்பாசனம்", "உரம்", "விதை",
		"கோதுமை", "நெல்", "மக்காச்சோளம்", "பருத்தி", "கரும்பு", "உருளைக்கிழங்கு", "தக்காளி", "வெங்காயம்",
	},
	language.Telugu: {
		"పంట", "వ్యవసాయం", "రైతు", "వర్షం", "వాతావరణం", "నీటిపారుదల", "ఎరువు", "విత్తనం",
		"గోధుమ", "వరి", "మొక్కజొన్న", "పత్తి", "చెరకు", "బంగాళదుంప", "టమాటా", "ఉల్లిపాయ",
	},
	language.Malayalam: {
		"വിള", "കൃഷി", "കർഷകൻ", "മഴ", "കാലാവസ്ഥ", "ജലസേചനം", "വളം", "വിത്ത്",
		"ഗോതമ്പ്", "നെല്ല്", "ചോളം", "പരുത്തി", "കരിമ്പ്", "ഉരുളക്കിഴങ്ങ്", "തക്കാളി", "സവാള",
	},
	language.Kannada: {
		"ಬೆಳೆ", "ಕೃಷಿ", "ರೈತ", "ಮಳೆ", "ಹವಾಮಾನ", "ನೀರಾವರಿ", "ಗೊಬ್ಬರ", "ಬೀಜ",
		"ಗೋಧಿ", "ಅಕ್ಕಿ", "ಮೆಕ್ಕೆಜೋಳ", "ಹತ್ತಿ", "ಕಬ್ಬು", "ಆಲೂಗೆಡ್ಡೆ", "ಟೊಮ್ಯಾಟೊ", "ಈರುಳ್ಳಿ",
	},
}

// Phrases returns the speech-context phrases for lang, falling back to
// English.
func Phrases(lang string) []string {
	if p, ok := agriculturalPhrases[lang]; ok {
		return p
	}
	return agriculturalPhrases[language.English]
}

// dialects lists the locales tried for each primary locale. The first
// entry is the primary.
var dialects = map[string][]string{
	"en-IN": {"en-IN", "en-US", "en-GB"},
	"ta-IN": {"ta-IN", "ta-LK", "ta-SG"},
	"bn-IN": {"bn-IN", "bn-BD"},
}

// googleLocale is the Cloud Speech locale for lang.
func googleLocale(lang string) string {
	if lang == language.Punjabi {
		return "pa-Guru-IN"
	}
	return language.Locale(lang)
}

// alternativeLocales returns up to three extra locales for primary.
func alternativeLocales(primary string) []string {
	d := dialects[primary]
	if len(d) <= 1 {
		return nil
	}
	alts := d[1:]
	if len(alts) > 3 {
		alts = alts[:3]
	}
	return alts
}
