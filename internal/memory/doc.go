// Package memory persists the message and fact records of the agent runtime.
// Every backend implements plugin.MemoryManager for one logical table
// ("messages" or "facts"); the file driver is the default for local runs.
package memory
