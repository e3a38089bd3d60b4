// Package services provides cross-cutting helpers shared by the pipeline
// components: context annotation for correlation fields and error wrapping
// sentinels used to classify failures.
package services
