package protocol

import "github.com/sigurn/crc16"

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum computes the CRC-16/MODBUS checksum of data
// (reflected polynomial 0xA001, initial value 0xFFFF, no final XOR).
// An empty slice yields 0xFFFF.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, modbusTable)
}
