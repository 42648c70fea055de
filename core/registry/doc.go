// Package registry holds the record types the service synchronizes.
//
// The registry is loaded once from a YAML file and is read-only afterwards. Each entry maps
// a remote record type to its local storage name, field mapping, change discovery
// mechanism, enabled operations, sync mode and partition size:
//
//	types:
//	  - name: Contact
//	    local_type: contacts
//	    fields:
//	      FirstName: first_name
//	      Email: email
//	    non_audited: [Description]
//	    mechanism: system_modstamp
//	    operations: [outbound_create, outbound_update, inbound_update, inbound_delete]
//	    sync_mode: async
//	    partition_size: 200
//
// A partition is fetched from the remote in a single call, so partition_size is
// capped at the client's batch_size when the types are wired.
package registry
