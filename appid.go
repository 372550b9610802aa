package decsync

import (
	"fmt"
	"math/rand/v2"

	"github.com/klauern/decsync/internal/deviceid"
)

// maxInstanceID bounds the instance id accepted by GetAppIDWithID.
const maxInstanceID = 100000

// GetAppID returns the conventional app id for this device and application:
// "<appName>-<deviceID>". The device id is generated and persisted on first
// use.
func GetAppID(appName string) (string, error) {
	device, err := deviceid.Get()
	if err != nil {
		return "", fmt.Errorf("decsync: device id: %w", err)
	}
	return appName + "-" + device, nil
}

// GetAppIDWithID is like GetAppID but appends an instance id, for
// applications that run several instances on the same device:
// "<appName>-<deviceID>-<id padded to 5 digits>". The id must be in
// [0, 100000).
func GetAppIDWithID(appName string, id int) (string, error) {
	if id < 0 || id >= maxInstanceID {
		return "", fmt.Errorf("decsync: instance id %d out of range [0, %d)", id, maxInstanceID)
	}
	device, err := deviceid.Get()
	if err != nil {
		return "", fmt.Errorf("decsync: device id: %w", err)
	}
	return fmt.Sprintf("%s-%s-%05d", appName, device, id), nil
}

// GenerateAppID returns an app id with a freshly drawn random instance id.
func GenerateAppID(appName string) (string, error) {
	return GetAppIDWithID(appName, rand.IntN(maxInstanceID))
}
