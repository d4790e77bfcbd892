package catalog

// cityToRegion canonicalizes Bulgarian city and region spellings (Cyrillic
// and transliterated) to the closed region set. Cities map to the region
// that contains them, which is the single containment level region matching
// tolerates.
var cityToRegion = map[string]string{
	// Sofia
	"sofia": "sofia", "софия": "sofia", "sofia grad": "sofia", "софия град": "sofia",
	"люлин": "sofia", "младост": "sofia", "витоша": "sofia",
	// Plovdiv
	"plovdiv": "plovdiv", "пловдив": "plovdiv", "асеновград": "plovdiv", "asenovgrad": "plovdiv",
	// Varna
	"varna": "varna", "варна": "varna", "провадия": "varna",
	// Burgas
	"burgas": "burgas", "бургас": "burgas", "несебър": "burgas", "nesebar": "burgas",
	"поморие": "burgas", "pomorie": "burgas",
	// Ruse
	"ruse": "ruse", "русе": "ruse",
	// Stara Zagora
	"stara zagora": "stara zagora", "стара загора": "stara zagora", "казанлък": "stara zagora", "kazanlak": "stara zagora",
	// Pleven
	"pleven": "pleven", "плевен": "pleven",
	// Veliko Tarnovo
	"veliko tarnovo": "veliko tarnovo", "велико търново": "veliko tarnovo",
	"горна оряховица": "veliko tarnovo", "gorna oryahovitsa": "veliko tarnovo",
	// Blagoevgrad
	"blagoevgrad": "blagoevgrad", "благоевград": "blagoevgrad", "банско": "blagoevgrad", "bansko": "blagoevgrad",
	"петрич": "blagoevgrad", "petrich": "blagoevgrad",
	// Pazardzhik
	"pazardzhik": "pazardzhik", "пазарджик": "pazardzhik", "велинград": "pazardzhik", "velingrad": "pazardzhik",
	// Sliven
	"sliven": "sliven", "сливен": "sliven",
	// Dobrich
	"dobrich": "dobrich", "добрич": "dobrich",
	// Shumen
	"shumen": "shumen", "шумен": "shumen",
	// Haskovo
	"haskovo": "haskovo", "хасково": "haskovo", "димитровград": "haskovo", "dimitrovgrad": "haskovo",
	// Vratsa
	"vratsa": "vratsa", "враца": "vratsa",
	// Gabrovo
	"gabrovo": "gabrovo", "габрово": "gabrovo", "севлиево": "gabrovo", "sevlievo": "gabrovo",
	// Vidin
	"vidin": "vidin", "видин": "vidin",
	// Montana
	"montana": "montana", "монтана": "montana",
	// Kardzhali
	"kardzhali": "kardzhali", "кърджали": "kardzhali",
	// Lovech
	"lovech": "lovech", "ловеч": "lovech", "троян": "lovech", "troyan": "lovech",
	// Pernik
	"pernik": "pernik", "перник": "pernik",
	// Razgrad
	"razgrad": "razgrad", "разград": "razgrad",
	// Silistra
	"silistra": "silistra", "силистра": "silistra",
	// Smolyan
	"smolyan": "smolyan", "смолян": "smolyan",
	// Targovishte
	"targovishte": "targovishte", "търговище": "targovishte",
	// Yambol
	"yambol": "yambol", "ямбол": "yambol",
	// Kyustendil
	"kyustendil": "kyustendil", "кюстендил": "kyustendil", "дупница": "kyustendil", "dupnitsa": "kyustendil",
}
