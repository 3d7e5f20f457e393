package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// DefaultTenantName is the tenant path used when no tenant is given.
const DefaultTenantName = "default"

// defaultTenantID is the settings key of the default tenant.
const defaultTenantID = -2

// TenantPath returns the directory segment of tenant. Tenant 0 stays "0";
// other numeric tenants are split into two-digit groups from the right
// ("5" becomes "00/00/05", "1234567" becomes "123/45/67") so that no
// directory holds more than a hundred tenants. Non-numeric names are used
// as is.
func TenantPath(tenant string) string {
	n, err := strconv.ParseInt(tenant, 10, 64)
	if err != nil {
		return tenant
	}
	if n == 0 {
		return "0"
	}

	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%06d", n)
	k := len(digits)
	return sign + digits[:k-4] + "/" + digits[k-4:k-2] + "/" + digits[k-2:]
}

// resolveTenant maps a raw tenant to its settings id and path. The empty
// tenant and DefaultTenantName both name the default tenant; anything else
// must be numeric.
func resolveTenant(tenant string) (int, string, error) {
	if tenant == "" || tenant == DefaultTenantName {
		return defaultTenantID, DefaultTenantName, nil
	}
	id, err := strconv.Atoi(tenant)
	if err != nil {
		return 0, "", errors.NotValidf("tenant %q", tenant)
	}
	return id, TenantPath(tenant), nil
}

// tenantIDFromPath reverses TenantPath for the default and numeric tenants.
func tenantIDFromPath(path string) (int, bool) {
	if path == DefaultTenantName {
		return defaultTenantID, true
	}
	id, err := strconv.Atoi(strings.ReplaceAll(path, "/", ""))
	if err != nil {
		return 0, false
	}
	return id, true
}
