// Package tools defines the Tool interface for LLM agents, the generic Base tool,
// the result envelope, error classification and the tools registry.
// Tools enable agents to interact with external systems and APIs in a structured, extensible way.
//
// Every tool returns a JSON envelope from Call:
//
//	{"status":"success","tool":"<name>","data":{...},"cached":false,"timestamp":"..."}
//	{"status":"error","tool":"<name>","error":"...","error_type":"auth","resolution":"...","timestamp":"..."}
package tools
