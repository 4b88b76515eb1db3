package serial

import (
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Bridge names the USB-to-serial chip behind the port, or "" if unknown.
func (p PortInfo) Bridge() string {
	if !p.IsUSB {
		return ""
	}
	return usbBridges[strings.ToUpper(p.VID)]
}

// usbBridges maps USB vendor IDs commonly found on ESP32 dev boards.
var usbBridges = map[string]string{
	"303A": "Espressif USB-JTAG/serial",
	"10C4": "Silicon Labs CP210x",
	"1A86": "WCH CH340",
	"0403": "FTDI",
}

// ListPorts returns available serial ports sorted by name.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Find returns the port called name.
func Find(ports []PortInfo, name string) (PortInfo, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortInfo{}, false
}
