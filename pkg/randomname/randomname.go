// Package randomname generates throwaway human-looking identities: mailbox
// local-parts and display names. Values are drawn fresh on every call and are
// not guaranteed unique; callers that need uniqueness should add their own
// suffix or retry on collision.
package randomname

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

var firstNames = []string{
	"alex", "amelia", "andre", "anna", "arthur", "bella", "benjamin", "carla",
	"carmen", "charlie", "clara", "daniel", "diego", "elena", "elias", "emma",
	"felix", "fiona", "gabriel", "grace", "hanna", "henry", "ines", "ivan",
	"jasper", "julia", "karl", "laura", "leo", "lina", "lucas", "maria",
	"marco", "martin", "mila", "nadia", "niko", "nora", "oliver", "oscar",
	"paula", "pedro", "petra", "rosa", "ruben", "sara", "simon", "sofia",
	"stefan", "tara", "teo", "tessa", "tomas", "vera", "victor", "walter",
}

var lastNames = []string{
	"adler", "barnes", "becker", "berg", "brandt", "carter", "castillo",
	"dalton", "eriksen", "farrell", "fischer", "fletcher", "garcia", "hansen",
	"harper", "hayes", "holm", "hughes", "jensen", "keller", "krause", "lang",
	"larsen", "marsh", "mercer", "meyer", "moreno", "navarro", "nilsen",
	"osborne", "parker", "quinn", "reyes", "richter", "romero", "sawyer",
	"schmidt", "serrano", "sloan", "sommer", "steiner", "thorne", "vargas",
	"vidal", "wagner", "walsh", "weber", "winter", "wolf", "zimmer",
}

var (
	mu  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Seed re-seeds the package generator. Intended for deterministic tests.
func Seed(seed int64) {
	mu.Lock()
	defer mu.Unlock()
	rnd = rand.New(rand.NewSource(seed))
}

func pick(words []string) string {
	mu.Lock()
	defer mu.Unlock()
	return words[rnd.Intn(len(words))]
}

func numericSuffix() string {
	mu.Lock()
	defer mu.Unlock()
	return fmt.Sprintf("%04d", rnd.Intn(10000))
}

// Username returns a lowercase mailbox local-part such as "lina.weber4821".
// The result contains only letters, digits and a single dot.
func Username() string {
	return pick(firstNames) + "." + pick(lastNames) + numericSuffix()
}

// FullName returns a display name such as "Lina Weber".
func FullName() string {
	return capitalize(pick(firstNames)) + " " + capitalize(pick(lastNames))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
