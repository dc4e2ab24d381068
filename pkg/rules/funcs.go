package rules

import (
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Predicate checks a single string value. An error marks the predicate as
// broken; the engine disables the owning rule for the rest of the scan.
type Predicate func(value string) (bool, error)

// Rule files reference predicates by name. Resolution is closed-world: the
// registry is populated at program start and lookups happen at compile time,
// so a dangling reference fails the rule load instead of a scan.
var (
	registryMu sync.RWMutex
	registry   = map[string]Predicate{
		"luhn": luhnCheck,
		"uuid": uuidCheck,
		"ipv4": ipv4Check,
	}
)

// RegisterPredicate adds a named predicate before rules are loaded.
// Later registrations under the same name replace earlier ones.
func RegisterPredicate(name string, fn Predicate) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// LookupPredicate resolves a predicate reference from a rule file.
func LookupPredicate(name string) (Predicate, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// luhnCheck validates a numeric string with the Luhn check digit
// (payment card and IMEI style identifiers).
func luhnCheck(value string) (bool, error) {
	digits := strings.ReplaceAll(strings.ReplaceAll(value, " ", ""), "-", "")
	if len(digits) < 2 {
		return false, nil
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false, nil
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0, nil
}

func uuidCheck(value string) (bool, error) {
	_, err := uuid.Parse(value)
	return err == nil, nil
}

func ipv4Check(value string) (bool, error) {
	ip := net.ParseIP(value)
	return ip != nil && ip.To4() != nil, nil
}
